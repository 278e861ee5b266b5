package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-netlab/netdiag/pkg/frr"
	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

// writeBundle materializes a fake must-gather tree and opens it as a bundle.
func writeBundle(t *testing.T, files map[string]string) *mustgather.Bundle {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	bundle, err := mustgather.NewBundle(root)
	require.NoError(t, err)
	return bundle
}

const frrConfigYAML = `apiVersion: frrk8s.metallb.io/v1beta1
kind: FRRConfiguration
metadata:
  name: peers
  namespace: metallb-system
spec:
  bgp:
    routers:
    - asn: 64512
      neighbors:
      - address: 192.168.1.1
        asn: 64512
`

const frrConfigRawYAML = `apiVersion: frrk8s.metallb.io/v1beta1
kind: FRRConfiguration
metadata:
  name: raw-extras
  namespace: metallb-system
spec:
  raw:
    rawConfig: |
      router bgp 64512
       neighbor 10.9.9.9 remote-as 64999
`

const healthyDump = `###### show running-config
router bgp 64512
 neighbor 192.168.1.1 remote-as 64512
###### show bgp neighbor
BGP neighbor is 192.168.1.1, remote AS 64512, local AS 64512, internal link
  BGP state = Established, up for 00:05:00
###### show ip bgp
   Network          Next Hop            Metric LocPrf Weight Path
*> 10.0.0.0/24      0.0.0.0                  0         32768 i
`

func nodeStateYAML(node, runningConfig string) string {
	return `apiVersion: frrk8s.metallb.io/v1beta1
kind: FRRNodeState
metadata:
  name: ` + node + `
status:
  runningConfig: |
` + indent(runningConfig, "    ")
}

func indent(s, prefix string) string {
	out := ""
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		out += prefix + line + "\n"
	}
	return out
}

func TestAnalyzeBGPHealthyNode(t *testing.T) {
	bundle := writeBundle(t, map[string]string{
		"namespaces/metallb-system/frrk8s.metallb.io/frrconfigurations/peers.yaml": frrConfigYAML,
		"cluster-scoped-resources/frrk8s.metallb.io/frrnodestates/worker-0.yaml":   nodeStateYAML("worker-0", "router bgp 64512\n neighbor 192.168.1.1 remote-as 64512\n"),
		"network_logs/worker-0/dump_frr": healthyDump,
	})

	analyzer := &AnalyzeBGP{}
	result, err := analyzer.Analyze(bundle)
	require.NoError(t, err)

	// An Established neighbor and a valid best local route produce no
	// issues at all.
	assert.Empty(t, result.Issues)
	assert.Empty(t, result.Recommendations)

	detail := result.Detail.(*BGPDetail)
	require.Len(t, detail.Nodes, 1)
	node := detail.Nodes[0]
	assert.Equal(t, "worker-0", node.Node)
	assert.Equal(t, []frr.Router{{ASN: 64512, VRF: "default"}}, node.Routers)
	require.Len(t, node.Neighbors, 1)
	assert.Equal(t, "Established", node.Neighbors[0].State)
	assert.Equal(t, "00:05:00", node.Neighbors[0].Uptime)
	assert.Equal(t, SyncStatusSynced, node.SyncStatus)
	require.Len(t, node.RoutesV4, 1)
	assert.True(t, node.RoutesV4[0].IsLocal())
}

func TestAnalyzeBGPNeighborDown(t *testing.T) {
	dump := `###### show running-config
router bgp 64512
###### show bgp neighbor
BGP neighbor is 192.168.1.1, remote AS 64512, local AS 64512, internal link
  BGP state = Active
`
	bundle := writeBundle(t, map[string]string{
		"namespaces/metallb-system/frrk8s.metallb.io/frrconfigurations/peers.yaml": frrConfigYAML,
		"network_logs/worker-0/dump_frr":                                           dump,
	})

	result, err := (&AnalyzeBGP{}).Analyze(bundle)
	require.NoError(t, err)

	critical := result.Critical()
	require.Len(t, critical, 1)
	assert.Equal(t, "worker-0", critical[0].Node)
	assert.Contains(t, critical[0].Message, "neighbor 192.168.1.1 is not Established (state Active)")
	// Best effort cross-reference back to the declaring configuration.
	assert.Contains(t, critical[0].Message, "declared by FRRConfiguration peers")

	assert.NotEmpty(t, result.Recommendations)
}

func TestAnalyzeBGPOutOfSync(t *testing.T) {
	bundle := writeBundle(t, map[string]string{
		"namespaces/metallb-system/frrk8s.metallb.io/frrconfigurations/peers.yaml": frrConfigYAML,
		"namespaces/metallb-system/frrk8s.metallb.io/frrconfigurations/raw.yaml":   frrConfigRawYAML,
		"cluster-scoped-resources/frrk8s.metallb.io/frrnodestates/worker-0.yaml":   nodeStateYAML("worker-0", "router bgp 64999\n"),
		"network_logs/worker-0/dump_frr":                                           healthyDump,
	})

	result, err := (&AnalyzeBGP{}).Analyze(bundle)
	require.NoError(t, err)

	detail := result.Detail.(*BGPDetail)
	require.Len(t, detail.Nodes, 1)
	assert.Equal(t, SyncStatusOutOfSync, detail.Nodes[0].SyncStatus)

	var sawOutOfSync, sawRawNote bool
	for _, issue := range result.Issues {
		if issue.Severity == SeverityCritical && issue.Node == "worker-0" && strings.Contains(issue.Message, "out of sync") {
			sawOutOfSync = true
		}
		if issue.Severity == SeverityWarning && strings.Contains(issue.Message, "raw config") {
			sawRawNote = true
		}
	}
	assert.True(t, sawOutOfSync, "expected an out of sync critical issue")
	assert.True(t, sawRawNote, "expected the raw config heuristic note")
}

func TestAnalyzeBGPMissingRuntimeState(t *testing.T) {
	bundle := writeBundle(t, map[string]string{
		"namespaces/metallb-system/frrk8s.metallb.io/frrconfigurations/peers.yaml": frrConfigYAML,
		"network_logs/worker-1/dump_frr":                                           "###### show version\nFRRouting 8.5.3\n",
	})

	result, err := (&AnalyzeBGP{}).Analyze(bundle)
	require.NoError(t, err)

	warnings := result.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "worker-1", warnings[0].Node)
	assert.Contains(t, warnings[0].Message, "FRR runtime state not found")

	// Everything downstream is suppressed for that node.
	detail := result.Detail.(*BGPDetail)
	require.Len(t, detail.Nodes, 1)
	assert.False(t, detail.Nodes[0].HasRuntimeState)
	assert.Empty(t, detail.Nodes[0].Routers)
	assert.Empty(t, detail.Nodes[0].Neighbors)
}

func TestClassifyRoutePriority(t *testing.T) {
	weight := func(w int) *int { return &w }

	tests := []struct {
		name         string
		route        frr.Route
		wantSeverity Severity
		wantContains string
		wantFlagged  bool
	}{
		{
			name:         "not valid wins over everything",
			route:        frr.Route{Network: "10.0.0.0/24", Valid: false, RIBFailure: true, Removed: true},
			wantSeverity: SeverityCritical,
			wantContains: "not valid",
			wantFlagged:  true,
		},
		{
			name:         "rib failure before removed",
			route:        frr.Route{Network: "10.0.0.0/24", Valid: true, RIBFailure: true, Removed: true},
			wantSeverity: SeverityCritical,
			wantContains: "rib-failure",
			wantFlagged:  true,
		},
		{
			name:         "removed before stale",
			route:        frr.Route{Network: "10.0.0.0/24", Valid: true, Removed: true, Stale: true},
			wantSeverity: SeverityWarning,
			wantContains: "removed",
			wantFlagged:  true,
		},
		{
			name:         "stale before no best path",
			route:        frr.Route{Network: "10.0.0.0/24", Valid: true, Stale: true},
			wantSeverity: SeverityWarning,
			wantContains: "stale",
			wantFlagged:  true,
		},
		{
			name:         "no best path",
			route:        frr.Route{Network: "10.0.0.0/24", Valid: true, Best: false},
			wantSeverity: SeverityWarning,
			wantContains: "no best path",
			wantFlagged:  true,
		},
		{
			name:        "healthy route not flagged",
			route:       frr.Route{Network: "10.0.0.0/24", Valid: true, Best: true, Weight: weight(32768)},
			wantFlagged: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			issue, flagged := classifyRoute("worker-0", test.route)
			require.Equal(t, test.wantFlagged, flagged)
			if flagged {
				assert.Equal(t, test.wantSeverity, issue.Severity)
				assert.Contains(t, issue.Message, test.wantContains)
			}
		})
	}
}

func TestNodeFromDumpPath(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"network_logs/worker-0/dump_frr", "worker-0"},
		{"network_logs/dump_frr_worker-1.txt", "worker-1"},
		{"network_logs/worker-2_dump_frr", "worker-2"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, nodeFromDumpPath(test.rel))
	}
}
