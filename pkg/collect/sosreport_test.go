package collect

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	node string
	kind string
}

// fakeRunner scripts oc responses per command kind and records the order in
// which commands arrive.
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall
	fail  map[string]map[string]bool // kind -> node -> fail
}

func (f *fakeRunner) failOn(kind, node string) {
	if f.fail == nil {
		f.fail = map[string]map[string]bool{}
	}
	if f.fail[kind] == nil {
		f.fail[kind] = map[string]bool{}
	}
	f.fail[kind][node] = true
}

func (f *fakeRunner) Run(_ context.Context, _ time.Duration, args ...string) ([]byte, []byte, error) {
	node := ""
	for _, arg := range args {
		if strings.HasPrefix(arg, "node/") {
			node = strings.TrimPrefix(arg, "node/")
		}
		if strings.HasPrefix(arg, "node-debug-") {
			node = strings.TrimPrefix(strings.Split(arg, ":")[0], "node-debug-")
		}
	}

	kind := classify(args)

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{node: node, kind: kind})
	shouldFail := f.fail[kind][node]
	f.mu.Unlock()

	if shouldFail {
		return nil, []byte("scripted failure"), errors.New("exit status 1")
	}

	switch kind {
	case "collect":
		return []byte("Your sosreport has been generated and saved in:\n  /host/var/tmp/sosreport-" + node + "-2026-08-30.tar.xz\n"), nil, nil
	case "cat", "tar":
		return []byte("archive-bytes"), nil, nil
	default:
		return nil, nil, nil
	}
}

func classify(args []string) string {
	joined := strings.Join(args, " ")
	switch {
	case args[0] == "whoami":
		return "login"
	case strings.Contains(joined, "sos report"):
		return "collect"
	case strings.Contains(joined, "test -f"):
		return "probe"
	case args[0] == "cp":
		return "cp"
	case strings.Contains(joined, " cat "):
		return "cat"
	case strings.Contains(joined, " tar "):
		return "tar"
	case strings.Contains(joined, " rm "):
		return "cleanup"
	default:
		return "start"
	}
}

func (f *fakeRunner) kindsForNode(node string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []string
	for _, call := range f.calls {
		if call.node == node {
			kinds = append(kinds, call.kind)
		}
	}
	return kinds
}

func TestSosCollectorHappyPath(t *testing.T) {
	runner := &fakeRunner{}
	collector := &SosCollector{
		Runner:    runner,
		Nodes:     []string{"worker-0", "worker-1"},
		OutputDir: t.TempDir(),
		Workers:   2,
		Cleanup:   true,
	}

	summary, err := collector.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Nodes, 2)

	for _, node := range summary.Nodes {
		assert.True(t, node.Succeeded, "node %s should succeed", node.Node)
		assert.NotEmpty(t, node.Archive)
		assert.Empty(t, node.FailedPhase)
	}
	assert.Empty(t, summary.Failed())
}

func TestSosCollectorPhaseOrderingIsStrict(t *testing.T) {
	runner := &fakeRunner{}
	collector := &SosCollector{
		Runner:    runner,
		Nodes:     []string{"worker-0", "worker-1", "worker-2"},
		OutputDir: t.TempDir(),
		Workers:   3,
	}

	_, err := collector.Run(context.Background())
	require.NoError(t, err)

	// Every start call must come before every collect call, and every
	// collect before every download access. Order within a phase is free.
	rank := map[string]int{"start": 0, "collect": 1, "probe": 2, "cp": 2, "cat": 2, "tar": 2, "cleanup": 3}
	lastOfRank := map[int]int{}
	firstOfRank := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for i, call := range runner.calls {
		r := rank[call.kind]
		lastOfRank[r] = i
		if firstOfRank[r] == -1 {
			firstOfRank[r] = i
		}
	}
	if firstOfRank[1] != -1 {
		assert.Less(t, lastOfRank[0], firstOfRank[1], "all starts before any collect")
	}
	if firstOfRank[2] != -1 {
		assert.Less(t, lastOfRank[1], firstOfRank[2], "all collects before any download")
	}
}

func TestSosCollectorFailedNodeIsExcludedFromLaterPhases(t *testing.T) {
	runner := &fakeRunner{}
	runner.failOn("collect", "worker-1")

	collector := &SosCollector{
		Runner:    runner,
		Nodes:     []string{"worker-0", "worker-1"},
		OutputDir: t.TempDir(),
		Workers:   2,
		Cleanup:   true,
	}

	summary, err := collector.Run(context.Background())
	require.NoError(t, err, "a failed node must not abort the batch")

	failed := summary.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "worker-1", failed[0].Node)
	assert.Equal(t, PhaseCollect, failed[0].FailedPhase)
	assert.NotEmpty(t, failed[0].LogPath)

	// worker-1 saw start and collect only; no download or cleanup commands.
	kinds := runner.kindsForNode("worker-1")
	assert.Equal(t, []string{"start", "collect"}, kinds)

	// worker-0 went all the way through.
	assert.Contains(t, runner.kindsForNode("worker-0"), "cleanup")
}

func TestSosCollectorDownloadFallbackChain(t *testing.T) {
	runner := &fakeRunner{}
	runner.failOn("cp", "worker-0")
	runner.failOn("cat", "worker-0")

	collector := &SosCollector{
		Runner:    runner,
		Nodes:     []string{"worker-0"},
		OutputDir: t.TempDir(),
		Workers:   1,
	}

	summary, err := collector.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Nodes, 1)
	assert.True(t, summary.Nodes[0].Succeeded)

	kinds := runner.kindsForNode("worker-0")
	assert.Equal(t, []string{"start", "collect", "probe", "cp", "cat", "tar"}, kinds)
}

func TestSosCollectorFailsFastWithoutSession(t *testing.T) {
	runner := &fakeRunner{}
	runner.failOn("login", "")

	collector := &SosCollector{
		Runner:    runner,
		Nodes:     []string{"worker-0"},
		OutputDir: t.TempDir(),
	}

	_, err := collector.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	// No per-node work was attempted.
	assert.Empty(t, runner.kindsForNode("worker-0"))
}

func TestSosCollectorNoNodes(t *testing.T) {
	collector := &SosCollector{Runner: &fakeRunner{}, OutputDir: t.TempDir()}
	_, err := collector.Run(context.Background())
	assert.Error(t, err)
}
