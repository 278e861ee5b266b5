// Package report renders analyzer results as text, JSON or a static HTML
// page. The text layout is deterministic so reports diff cleanly between
// gathers.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	analyzer "github.com/openshift-netlab/netdiag/pkg/analyze"
)

var (
	criticalTag = color.New(color.FgRed, color.Bold).Sprint("CRITICAL")
	warningTag  = color.New(color.FgYellow).Sprint("WARNING")
)

// WriteText renders a full text report for one analyzer result.
func WriteText(w io.Writer, result *analyzer.Result) error {
	fmt.Fprintf(w, "=== %s ===\n\n", result.Title)

	if detail, ok := result.Detail.(*analyzer.BGPDetail); ok {
		writeBGPDetail(w, detail)
	}

	writeIssues(w, result)
	writeRecommendations(w, result)
	return nil
}

func writeBGPDetail(w io.Writer, detail *analyzer.BGPDetail) {
	for _, node := range detail.Nodes {
		fmt.Fprintf(w, "Node: %s\n", node.Node)
		if !node.HasRuntimeState {
			fmt.Fprintf(w, "  (no FRR runtime state in dump)\n\n")
			continue
		}

		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  ROUTER\tASN\tVRF")
		for i, router := range node.Routers {
			fmt.Fprintf(tw, "  %d\t%d\t%s\n", i+1, router.ASN, router.VRF)
		}
		tw.Flush()

		tw = tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  NEIGHBOR\tREMOTE AS\tSTATE\tUPTIME\tHOSTNAME")
		for _, n := range node.Neighbors {
			fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%s\n", n.Address, n.RemoteASN, n.State, n.Uptime, n.Hostname)
		}
		tw.Flush()

		local := 0
		for _, r := range node.RoutesV4 {
			if r.IsLocal() {
				local++
			}
		}
		for _, r := range node.RoutesV6 {
			if r.IsLocal() {
				local++
			}
		}
		fmt.Fprintf(w, "  Routes: %d IPv4, %d IPv6 (%d local)\n", len(node.RoutesV4), len(node.RoutesV6), local)
		fmt.Fprintf(w, "  Config sync: %s\n", node.SyncStatus)
		if len(node.Skipped) > 0 {
			fmt.Fprintf(w, "  %d route table rows skipped\n", len(node.Skipped))
		}
		fmt.Fprintln(w)
	}

	if len(detail.Configs) > 0 {
		fmt.Fprintf(w, "FRRConfigurations: %d\n", len(detail.Configs))
		for _, config := range detail.Configs {
			raw := ""
			if config.HasRawConfig {
				raw = " (raw config)"
			}
			fmt.Fprintf(w, "  %s/%s: %d neighbors%s\n", config.Namespace, config.Name, len(config.Neighbors), raw)
		}
		fmt.Fprintln(w)
	}
}

func writeIssues(w io.Writer, result *analyzer.Result) {
	critical := result.Critical()
	warnings := result.Warnings()

	if len(critical) == 0 && len(warnings) == 0 {
		fmt.Fprintln(w, "No issues detected.")
		return
	}

	fmt.Fprintln(w, "ISSUES DETECTED")
	for _, issue := range critical {
		fmt.Fprintf(w, "  %s %s\n", criticalTag, issueLine(issue))
	}
	for _, issue := range warnings {
		fmt.Fprintf(w, "  %s  %s\n", warningTag, issueLine(issue))
	}
	for _, issue := range result.Issues {
		if issue.Severity == analyzer.SeverityInfo {
			fmt.Fprintf(w, "  INFO     %s\n", issueLine(issue))
		}
	}
	fmt.Fprintln(w)
}

func issueLine(issue analyzer.Issue) string {
	if issue.Node != "" {
		return fmt.Sprintf("[%s] %s", issue.Node, issue.Message)
	}
	return issue.Message
}

func writeRecommendations(w io.Writer, result *analyzer.Result) {
	if len(result.Recommendations) == 0 {
		return
	}
	fmt.Fprintln(w, "RECOMMENDATIONS")
	for _, rec := range result.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}
