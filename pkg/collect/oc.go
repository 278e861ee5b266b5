// Package collect drives oc/sosreport subprocesses to gather diagnostics
// from cluster nodes. All cluster access goes through the oc binary; there is
// deliberately no API client here.
package collect

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/openshift-netlab/netdiag/pkg/constants"
)

// CommandRunner abstracts subprocess execution so the collector phases can be
// tested without a cluster.
type CommandRunner interface {
	// Run executes the oc binary with args, bounded by timeout. It returns
	// captured stdout and stderr whether or not the command failed.
	Run(ctx context.Context, timeout time.Duration, args ...string) (stdout, stderr []byte, err error)
}

// proxy variables forwarded into remote debug shells so sos can reach
// registries behind a proxy.
var forwardedEnv = []string{
	"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
	"http_proxy", "https_proxy", "no_proxy",
}

type ocRunner struct {
	bin string
}

// NewOCRunner returns a runner for the oc binary, honoring the OC_BIN
// override.
func NewOCRunner() CommandRunner {
	bin := os.Getenv(constants.OCBinEnv)
	if bin == "" {
		bin = "oc"
	}
	return &ocRunner{bin: bin}
}

func (r *ocRunner) Run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	klog.V(2).Infof("running %s %v", r.bin, args)
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = errors.Errorf("timed out after %s", timeout)
	} else if err != nil {
		err = errors.Wrapf(err, "%s %v failed", r.bin, args)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// ForwardedEnvPrefix builds the "env K=V ..." argument prefix that carries
// proxy settings and the toolbox image into a chroot'ed debug shell. Empty
// when nothing needs forwarding.
func ForwardedEnvPrefix() []string {
	var pairs []string
	if image := os.Getenv(constants.ToolboxImageEnv); image != "" {
		pairs = append(pairs, constants.ToolboxImageEnv+"="+image)
	}
	for _, name := range forwardedEnv {
		if value := os.Getenv(name); value != "" {
			pairs = append(pairs, name+"="+value)
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	return append([]string{"env"}, pairs...)
}
