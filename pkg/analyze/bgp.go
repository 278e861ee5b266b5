package analyzer

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/openshift-netlab/netdiag/pkg/frr"
	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

// SyncStatus describes how a node's live FRR configuration compares to the
// configuration last applied through FRRNodeState.
type SyncStatus string

const (
	SyncStatusSynced    SyncStatus = "synced"
	SyncStatusOutOfSync SyncStatus = "out-of-sync"
	SyncStatusUnknown   SyncStatus = "unknown"
)

// NodeBGPState is everything the BGP analyzer derived for one node.
type NodeBGPState struct {
	Node            string           `json:"node"`
	HasRuntimeState bool             `json:"hasRuntimeState"`
	Routers         []frr.Router     `json:"routers,omitempty"`
	Neighbors       []frr.Neighbor   `json:"neighbors,omitempty"`
	RoutesV4        []frr.Route      `json:"routesV4,omitempty"`
	RoutesV6        []frr.Route      `json:"routesV6,omitempty"`
	Skipped         []frr.SkipReason `json:"skipped,omitempty"`
	SyncStatus      SyncStatus       `json:"syncStatus"`
}

// BGPDetail is the analyzer-specific payload handed to the formatters.
type BGPDetail struct {
	Nodes   []NodeBGPState     `json:"nodes"`
	Configs []frr.ConfigRecord `json:"configs,omitempty"`
}

// AnalyzeBGP cross-references FRRConfiguration/FRRNodeState resources with
// the per-node dump_frr text dumps found in a must-gather.
type AnalyzeBGP struct {
	// DumpGlob overrides where dump_frr files are searched. Empty means the
	// default pattern.
	DumpGlob string
}

const defaultDumpGlob = "**dump_frr*"

func (a *AnalyzeBGP) Title() string {
	return "BGP/FRR state"
}

func (a *AnalyzeBGP) Analyze(bundle *mustgather.Bundle) (*Result, error) {
	configs, err := frr.LoadConfigRecords(bundle)
	if err != nil {
		return nil, err
	}
	nodeStates, err := frr.LoadNodeStates(bundle)
	if err != nil {
		return nil, err
	}

	pattern := a.DumpGlob
	if pattern == "" {
		pattern = defaultDumpGlob
	}
	dumpPaths, err := bundle.Glob(pattern)
	if err != nil {
		return nil, err
	}

	result := &Result{Title: a.Title(), Detail: &BGPDetail{Configs: configs}}
	detail := result.Detail.(*BGPDetail)

	for _, rel := range dumpPaths {
		node := nodeFromDumpPath(rel)
		data, err := bundle.ReadFile(rel)
		if err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityWarning,
				Node:     node,
				Message:  fmt.Sprintf("could not read FRR dump %s: %v", rel, err),
			})
			continue
		}

		state := a.analyzeNode(node, string(data), configs, nodeStates, result)
		detail.Nodes = append(detail.Nodes, state)
	}

	sort.Slice(detail.Nodes, func(i, j int) bool {
		return detail.Nodes[i].Node < detail.Nodes[j].Node
	})

	result.Recommendations = recommendationsFor(result.Issues)
	return result, nil
}

// analyzeNode parses one dump and appends the node's issues to result.
func (a *AnalyzeBGP) analyzeNode(node, dump string, configs []frr.ConfigRecord, nodeStates map[string]frr.NodeState, result *Result) NodeBGPState {
	state := NodeBGPState{Node: node, SyncStatus: SyncStatusUnknown}

	runningConfig, ok := frr.ExtractSection(dump, frr.SectionRunningConfig)
	if !ok {
		// Without the running config there is nothing trustworthy to parse;
		// everything downstream for this node is suppressed.
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityWarning,
			Node:     node,
			Message:  "FRR runtime state not found (dump has no running-config section)",
		})
		return state
	}
	state.HasRuntimeState = true

	state.Routers = frr.ParseRouters(runningConfig)

	if section, ok := frr.ExtractSection(dump, frr.SectionBGPNeighbors); ok {
		state.Neighbors = frr.ParseNeighbors(section)
	}
	if section, ok := frr.ExtractSection(dump, frr.SectionRoutesV4); ok {
		routes, skipped := frr.ParseRoutes(section)
		state.RoutesV4 = routes
		state.Skipped = append(state.Skipped, skipped...)
	}
	if section, ok := frr.ExtractSection(dump, frr.SectionRoutesV6); ok {
		routes, skipped := frr.ParseRoutes(section)
		state.RoutesV6 = routes
		state.Skipped = append(state.Skipped, skipped...)
	}

	for _, route := range state.RoutesV4 {
		if issue, ok := classifyRoute(node, route); ok {
			result.Issues = append(result.Issues, issue)
		}
	}
	for _, route := range state.RoutesV6 {
		if issue, ok := classifyRoute(node, route); ok {
			result.Issues = append(result.Issues, issue)
		}
	}

	for _, neighbor := range state.Neighbors {
		if neighbor.Established() {
			continue
		}
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityCritical,
			Node:     node,
			Message:  neighborIssueMessage(neighbor, configs),
		})
	}

	state.SyncStatus = a.checkSync(node, runningConfig, configs, nodeStates, result)

	if len(state.Skipped) > 0 {
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityInfo,
			Node:     node,
			Message:  fmt.Sprintf("%d route table rows skipped: %s", len(state.Skipped), skipSummary(state.Skipped)),
		})
	}

	return state
}

// classifyRoute flags at most one problem per route, in strict priority
// order: not-valid, rib-failure, removed, stale, no-best-path.
func classifyRoute(node string, route frr.Route) (Issue, bool) {
	switch {
	case !route.Valid:
		return Issue{
			Severity: SeverityCritical,
			Node:     node,
			Message:  fmt.Sprintf("route %s via %s is not valid", route.Network, route.NextHop),
		}, true
	case route.RIBFailure:
		return Issue{
			Severity: SeverityCritical,
			Node:     node,
			Message:  fmt.Sprintf("route %s via %s has a rib-failure (not installed in kernel)", route.Network, route.NextHop),
		}, true
	case route.Removed:
		return Issue{
			Severity: SeverityWarning,
			Node:     node,
			Message:  fmt.Sprintf("route %s via %s is marked removed", route.Network, route.NextHop),
		}, true
	case route.Stale:
		return Issue{
			Severity: SeverityWarning,
			Node:     node,
			Message:  fmt.Sprintf("route %s via %s is stale", route.Network, route.NextHop),
		}, true
	case !route.Best:
		return Issue{
			Severity: SeverityWarning,
			Node:     node,
			Message:  fmt.Sprintf("route %s via %s has no best path selected", route.Network, route.NextHop),
		}, true
	}
	return Issue{}, false
}

func neighborIssueMessage(neighbor frr.Neighbor, configs []frr.ConfigRecord) string {
	msg := fmt.Sprintf("neighbor %s is not Established (state %s)", neighbor.Address, neighbor.State)

	// Best effort pointer back to the declaring configuration; not finding
	// one does not soften the flag.
	var declaredBy []string
	for _, config := range configs {
		if config.DeclaresNeighbor(neighbor.Address) {
			declaredBy = append(declaredBy, config.Name)
		}
	}
	if len(declaredBy) > 0 {
		msg += fmt.Sprintf(", declared by FRRConfiguration %s", strings.Join(declaredBy, ", "))
	}
	return msg
}

func (a *AnalyzeBGP) checkSync(node, liveConfig string, configs []frr.ConfigRecord, nodeStates map[string]frr.NodeState, result *Result) SyncStatus {
	nodeState, ok := nodeStates[node]
	if !ok || nodeState.RunningConfig == "" {
		return SyncStatusUnknown
	}

	if frr.ConfigsInSync(liveConfig, nodeState.RunningConfig) {
		return SyncStatusSynced
	}

	result.Issues = append(result.Issues, Issue{
		Severity: SeverityCritical,
		Node:     node,
		Message:  "FRR running config is out of sync with the last applied FRRNodeState config",
	})
	if hasRawConfig(configs) {
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityWarning,
			Node:     node,
			Message:  "at least one FRRConfiguration uses raw config; raw snippets are not reflected in FRRNodeState and commonly explain sync mismatches",
		})
	}
	return SyncStatusOutOfSync
}

func hasRawConfig(configs []frr.ConfigRecord) bool {
	for _, config := range configs {
		if config.HasRawConfig {
			return true
		}
	}
	return false
}

func skipSummary(skipped []frr.SkipReason) string {
	counts := map[string]int{}
	for _, s := range skipped {
		counts[s.Reason]++
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		parts = append(parts, fmt.Sprintf("%s (%d)", reason, counts[reason]))
	}
	return strings.Join(parts, ", ")
}

// nodeFromDumpPath derives the node name from a dump_frr location. The
// gather scripts either drop the file into a per-node directory or suffix
// the file name with the node.
func nodeFromDumpPath(rel string) string {
	base := path.Base(rel)
	if base == "dump_frr" || base == "dump_frr.txt" {
		dir := path.Base(path.Dir(rel))
		if dir != "." && dir != "/" {
			return dir
		}
		return base
	}
	name := strings.TrimSuffix(base, ".txt")
	name = strings.TrimPrefix(name, "dump_frr_")
	name = strings.TrimSuffix(name, "_dump_frr")
	return name
}

// The keyword-triggered recommendation blocks appended to the report.
var recommendationRules = []struct {
	keyword string
	text    string
}{
	{"rib-failure", "rib-failure usually means a kernel route with a better administrative distance already covers the prefix. Compare 'ip route show' with the FRR RIB on the affected node."},
	{"out of sync", "An out of sync running config means FRR is not running what frr-k8s last applied. Check the frr-k8s pod logs on the node and look for reload failures."},
	{"not Established", "For sessions stuck outside Established, verify reachability of the peer address from the node, TCP/179 connectivity, and that local and remote ASNs match the peer's expectations."},
	{"raw config", "Raw FRRConfiguration snippets bypass the structured API and are not validated; prefer the structured fields where possible."},
	{"is stale", "Stale routes persist after a graceful restart. If they do not clear, check whether the peer completed its restart."},
	{"marked removed", "Removed routes are awaiting withdrawal processing. Persistent removed entries suggest a stuck BGP update job."},
	{"runtime state not found", "A dump without FRR runtime state usually means the FRR container was not running when the gather ran. Check the frr-k8s daemonset pods on that node."},
	{"no best path", "A route with no best path selected is usually transient. If persistent, look for conflicting advertisements with equal attributes."},
}

func recommendationsFor(issues []Issue) []string {
	var out []string
	for _, rule := range recommendationRules {
		for _, issue := range issues {
			if strings.Contains(issue.Message, rule.keyword) {
				out = append(out, rule.text)
				break
			}
		}
	}
	return out
}
