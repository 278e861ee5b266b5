package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openshift-netlab/netdiag/pkg/coverage"
	"github.com/openshift-netlab/netdiag/pkg/logger"
	"github.com/openshift-netlab/netdiag/pkg/report"
)

func CoverageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage [source dir]",
		Short: "Flag exported functions with no apparent test",
		Long:  `Statically compares the exported functions of each package under the given directory against the identifiers its tests mention. A heuristic triage signal, not a coverage profile.`,
		Args:  cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			logger.SetupLogger(v)
			return runCoverage(v, args[0])
		},
	}

	cmd.Flags().String("format", "text", "output format: text or json")

	return cmd
}

func runCoverage(v *viper.Viper, root string) error {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return prereqErrorf("%s is not a directory", root)
	}

	rep, err := coverage.Scan(root)
	if err != nil {
		return err
	}

	if v.GetString("format") == "json" {
		return report.WriteJSONValue(os.Stdout, rep)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tEXPORTED\tEXERCISED\tGAP")
	for _, pkg := range rep.Packages {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n", pkg.Dir, pkg.Exported, pkg.Exercised, pkg.GapPercent())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, pkg := range rep.Packages {
		for _, gap := range pkg.Gaps {
			fmt.Printf("  no test mentions %s (%s)\n", gap.Function, gap.File)
		}
	}
	fmt.Println("\nHeuristic result; run go test -cover for real numbers.")
	return nil
}
