/*
Logging conventions for netdiag.

All packages log through k8s.io/klog/v2. Level 0 is reserved for progress
output driven by the CLI itself; individual collectors and analyzers log at
V(1) for high level events ("parsed 4 FRRConfigurations") and V(2) for
everything else.

Do not log errors in functions that return an error. Return the error and let
the caller decide.
*/
package logger

import (
	"flag"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

var lock sync.Mutex

// InitKlogFlags registers the klog flags we expose on the CLI. Only -v is
// surfaced; the file/stderr routing flags stay at their defaults.
func InitKlogFlags(flags *pflag.FlagSet) {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.VisitAll(func(f *flag.Flag) {
		if f.Name == "v" {
			flags.AddGoFlag(f)
		}
	})
}

// InitKlog sets a fixed verbosity without going through flag parsing. Used by
// tests that want instrumented output.
func InitKlog(verbosity int) {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.VisitAll(func(f *flag.Flag) {
		if f.Name == "v" {
			f.Value.Set(fmt.Sprintf("%d", verbosity))
		}
	})
}

// SetupLogger enables klog output only when --debug or -v was given.
func SetupLogger(v *viper.Viper) {
	verbose := v.GetBool("debug") || v.IsSet("v")
	SetQuiet(!verbose)
}

// SetQuiet discards or restores klog output.
func SetQuiet(quiet bool) {
	lock.Lock()
	defer lock.Unlock()

	if quiet {
		klog.SetLogger(logr.Discard())
	} else {
		klog.ClearLogger()
	}
}
