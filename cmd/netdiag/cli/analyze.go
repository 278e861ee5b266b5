package cli

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	analyzer "github.com/openshift-netlab/netdiag/pkg/analyze"
	"github.com/openshift-netlab/netdiag/pkg/logger"
	"github.com/openshift-netlab/netdiag/pkg/mustgather"
	"github.com/openshift-netlab/netdiag/pkg/report"
)

func AnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a must-gather bundle",
	}

	cmd.PersistentFlags().String("format", "text", "output format: text, json or html")
	cmd.PersistentFlags().StringP("output", "o", "", "write the report to a file instead of stdout")

	cmd.AddCommand(analyzeSubCmd("bgp", "Cross-reference FRR configuration and runtime state", &analyzer.AnalyzeBGP{}))
	cmd.AddCommand(analyzeSubCmd("lvms", "Check LVMS storage health", &analyzer.AnalyzeLVMS{}))
	cmd.AddCommand(analyzeSubCmd("multus", "Validate Multus secondary networks", &analyzer.AnalyzeMultus{}))
	cmd.AddCommand(analyzeSubCmd("gateway", "Extract the Gateway API topology", &analyzer.AnalyzeGateway{}))

	return cmd
}

func analyzeSubCmd(name, short string, a analyzer.Analyzer) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [must-gather dir]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			viper.BindPFlags(cmd.Flags())
			viper.BindPFlags(cmd.Parent().PersistentFlags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			logger.SetupLogger(v)
			return runAnalyzer(cmd.Context(), v, args[0], a)
		},
	}
}

func runAnalyzer(ctx context.Context, v *viper.Viper, bundlePath string, a analyzer.Analyzer) error {
	bundle, err := mustgather.NewBundle(bundlePath)
	if err != nil {
		return prereqErrorf("cannot open must-gather at %s: %v", bundlePath, err)
	}

	result := analyzer.Run(ctx, bundle, a)

	out, cleanup, err := outputWriter(v)
	if err != nil {
		return err
	}
	defer cleanup()

	switch v.GetString("format") {
	case "", "text":
		return report.WriteText(out, result)
	case "json":
		return report.WriteJSON(out, result)
	case "html":
		return report.WriteHTML(out, result)
	default:
		return prereqErrorf("unknown format %q", v.GetString("format"))
	}
}

// outputWriter returns stdout or the --output file.
func outputWriter(v *viper.Viper) (io.Writer, func(), error) {
	path := v.GetString("output")
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot create %s", path)
	}
	return f, func() { f.Close() }, nil
}
