package cli

import (
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/openshift-netlab/netdiag/pkg/constants"
	"github.com/openshift-netlab/netdiag/pkg/logger"
)

// errPrerequisites marks input/validation failures that happen before any
// real work; they map to exit code 2 instead of the generic 1.
var errPrerequisites = errors.New("prerequisites not met")

func prereqErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(errPrerequisites, format, args...)
}

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "netdiag",
		Short:        "Diagnostics for OpenShift networking and storage",
		Long:         `netdiag analyzes must-gather bundles, collects sosreports from cluster nodes and queries test management, producing text, JSON or HTML reports.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			v := viper.GetViper()
			v.BindPFlags(cmd.Flags())

			if !v.GetBool("debug") {
				klog.SetLogger(logr.Discard())
			}
		},
	}

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(AnalyzeCmd())
	cmd.AddCommand(CollectCmd())
	cmd.AddCommand(CoverageCmd())
	cmd.AddCommand(PolarionCmd())
	cmd.AddCommand(VersionCmd())

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	logger.InitKlogFlags(cmd.PersistentFlags())

	viper.BindPFlags(cmd.PersistentFlags())
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return cmd
}

func InitAndExecute() {
	if err := RootCmd().Execute(); err != nil {
		if errors.Is(err, errPrerequisites) {
			os.Exit(constants.ExitPrerequisites)
		}
		os.Exit(constants.ExitFailure)
	}
}

func initConfig() {
	viper.SetEnvPrefix(constants.ENV_PREFIX)
	viper.AutomaticEnv()
}
