package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openshift-netlab/netdiag/pkg/constants"
	"github.com/openshift-netlab/netdiag/pkg/logger"
	"github.com/openshift-netlab/netdiag/pkg/polarion"
	"github.com/openshift-netlab/netdiag/pkg/report"
)

func PolarionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "polarion",
		Short: "Query test management for runs, cases and regressions",
		Long:  `Talks to the Polarion REST API. The token comes from --token or ` + constants.PolarionTokenEnv + `.`,
	}

	cmd.PersistentFlags().String("url", "", "Polarion REST base URL")
	cmd.PersistentFlags().String("token", "", "bearer token, defaults to "+constants.PolarionTokenEnv)
	cmd.PersistentFlags().String("project", "", "Polarion project id")
	cmd.PersistentFlags().Int("days-back", 30, "how far back to query")
	cmd.PersistentFlags().String("format", "text", "output format: text or json")

	cmd.AddCommand(polarionRunsCmd())
	cmd.AddCommand(polarionCasesCmd())
	cmd.AddCommand(polarionRegressionsCmd())

	return cmd
}

func polarionClient(v *viper.Viper) (*polarion.Client, string, error) {
	project := v.GetString("project")
	if project == "" {
		return nil, "", prereqErrorf("no project given, use --project")
	}
	if v.GetString("url") == "" {
		return nil, "", prereqErrorf("no base URL given, use --url")
	}
	client, err := polarion.NewClient(v.GetString("url"), v.GetString("token"))
	if err != nil {
		return nil, "", prereqErrorf("%v", err)
	}
	return client, project, nil
}

func bindPolarionFlags(cmd *cobra.Command, args []string) {
	viper.BindPFlags(cmd.Flags())
	viper.BindPFlags(cmd.Parent().PersistentFlags())
}

func polarionRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "runs",
		Short:  "List recent test runs",
		PreRun: bindPolarionFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			logger.SetupLogger(v)

			client, project, err := polarionClient(v)
			if err != nil {
				return err
			}
			runs, err := client.TestRuns(cmd.Context(), project, v.GetInt("days-back"))
			if err != nil {
				return err
			}

			if v.GetString("format") == "json" {
				return report.WriteJSONValue(os.Stdout, runs)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTATUS\tFINISHED")
			for _, run := range runs {
				finished := ""
				if !run.Finished.IsZero() {
					finished = run.Finished.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", run.ID, run.Status, finished)
			}
			return w.Flush()
		},
	}
}

func polarionCasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "cases [lucene query]",
		Short:  "List test cases matching a Lucene query",
		Args:   cobra.ArbitraryArgs,
		PreRun: bindPolarionFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			logger.SetupLogger(v)

			client, project, err := polarionClient(v)
			if err != nil {
				return err
			}
			cases, err := client.TestCases(cmd.Context(), project, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if v.GetString("format") == "json" {
				return report.WriteJSONValue(os.Stdout, cases)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "CASE\tSTATUS\tTITLE")
			for _, tc := range cases {
				fmt.Fprintf(w, "%s\t%s\t%s\n", tc.ID, tc.Status, tc.Title)
			}
			return w.Flush()
		},
	}
}

func polarionRegressionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "regressions",
		Short:  "List recent regression closures, filtering mass-closure sweeps",
		Long:   `Lists regressions closed in the query window. Dates on which more short-lived regressions were closed than the threshold allows are reported as suspected sweeps and their closures are dropped from the list.`,
		PreRun: bindPolarionFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			logger.SetupLogger(v)

			client, project, err := polarionClient(v)
			if err != nil {
				return err
			}
			closures, err := client.RegressionClosures(cmd.Context(), project, v.GetInt("days-back"))
			if err != nil {
				return err
			}

			threshold := v.GetInt("mass-closure-threshold")
			sweeps := polarion.FindMassClosureSweeps(closures, threshold)
			kept := polarion.FilterSweeps(closures, sweeps)

			if v.GetString("format") == "json" {
				return report.WriteJSONValue(os.Stdout, struct {
					Regressions []polarion.RegressionClosure `json:"regressions"`
					Sweeps      []polarion.SuspectedSweep    `json:"suspectedSweeps,omitempty"`
				}{kept, sweeps})
			}

			for _, sweep := range sweeps {
				fmt.Printf("suspected sweep on %s: %d short-lived closures, excluded\n", sweep.Date, sweep.Count)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "REGRESSION\tCLOSED\tOPEN FOR")
			for _, closure := range kept {
				fmt.Fprintf(w, "%s\t%s\t%s\n", closure.ID, closure.ClosedOn.Format("2006-01-02"), closure.OpenFor.Round(0))
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int("mass-closure-threshold", constants.DefaultMassClosureThreshold, "short-lived closures per day above which a sweep is suspected")

	return cmd
}
