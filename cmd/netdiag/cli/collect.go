package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openshift-netlab/netdiag/pkg/collect"
	"github.com/openshift-netlab/netdiag/pkg/constants"
	"github.com/openshift-netlab/netdiag/pkg/logger"
)

func CollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect diagnostics from cluster nodes",
	}

	cmd.AddCommand(sosreportCmd())

	return cmd
}

func sosreportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sosreport",
		Short: "Run sos report on nodes in parallel and download the archives",
		Long:  `Starts a debug pod on every node, runs sos report inside a toolbox container, downloads the archives and optionally removes them from the nodes. Requires a logged-in oc; override the binary with ` + constants.OCBinEnv + `.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			logger.SetupLogger(v)
			return runSosreport(cmd, v)
		},
	}

	cmd.Flags().StringSlice("nodes", nil, "nodes to collect from")
	cmd.Flags().Int("workers", constants.DefaultSosWorkers, "how many nodes to work on at once")
	cmd.Flags().StringP("output", "o", "sosreports", "directory for downloaded archives and per-node logs")
	cmd.Flags().Bool("cleanup", true, "remove the archives from the nodes after download")

	return cmd
}

func runSosreport(cmd *cobra.Command, v *viper.Viper) error {
	nodes := v.GetStringSlice("nodes")
	if len(nodes) == 0 {
		return prereqErrorf("no nodes given, use --nodes")
	}

	collector := &collect.SosCollector{
		Runner:    collect.NewOCRunner(),
		Nodes:     nodes,
		OutputDir: v.GetString("output"),
		Workers:   v.GetInt("workers"),
		Cleanup:   v.GetBool("cleanup"),
	}

	summary, err := collector.Run(cmd.Context())
	if err != nil {
		return err
	}

	for _, node := range summary.Nodes {
		if node.Succeeded {
			fmt.Printf("%s %s: %s\n", color.GreenString("ok"), node.Node, node.Archive)
		} else {
			fmt.Printf("%s %s: %s phase failed: %s (log: %s)\n", color.RedString("failed"), node.Node, node.FailedPhase, node.Error, node.LogPath)
		}
	}

	if failed := summary.Failed(); len(failed) > 0 {
		return fmt.Errorf("collection failed on %d of %d nodes", len(failed), len(summary.Nodes))
	}
	return nil
}
