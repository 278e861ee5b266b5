package collect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/openshift-netlab/netdiag/pkg/constants"
)

// Phase names the four strict stages of a collection run. A node that fails
// phase N never enters phase N+1; the rest of the batch is unaffected.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseCollect  Phase = "collect"
	PhaseDownload Phase = "download"
	PhaseCleanup  Phase = "cleanup"
)

// NodeStatus is the per-node outcome of a run.
type NodeStatus struct {
	Node        string `json:"node"`
	Succeeded   bool   `json:"succeeded"`
	FailedPhase Phase  `json:"failedPhase,omitempty"`
	Error       string `json:"error,omitempty"`
	Archive     string `json:"archive,omitempty"`
	LogPath     string `json:"logPath"`
}

// Summary is the final report of a collection run.
type Summary struct {
	Nodes []NodeStatus `json:"nodes"`
}

func (s *Summary) Failed() []NodeStatus {
	var out []NodeStatus
	for _, node := range s.Nodes {
		if !node.Succeeded {
			out = append(out, node)
		}
	}
	return out
}

// SosCollector fans sosreport collection out across nodes with a bounded
// worker pool.
type SosCollector struct {
	Runner    CommandRunner
	Nodes     []string
	OutputDir string
	Workers   int
	Cleanup   bool

	// printLock serializes progress lines from concurrent workers.
	printLock sync.Mutex
	// archiveLock guards the node -> remote archive path map shared by the
	// collect and download phases.
	archiveLock sync.Mutex
	statuses    map[string]*NodeStatus
}

var sosArchiveRe = regexp.MustCompile(`/(?:host/)?var/tmp/sosreport-\S+\.tar\.xz`)

// Run executes the four phases. Within a phase nodes complete in whatever
// order they finish; phases themselves are strictly ordered.
func (c *SosCollector) Run(ctx context.Context) (*Summary, error) {
	if len(c.Nodes) == 0 {
		return nil, errors.New("no nodes to collect from")
	}
	if c.Workers <= 0 {
		c.Workers = constants.DefaultSosWorkers
	}

	// Fail fast when oc has no session instead of timing out per node.
	if _, stderr, err := c.Runner.Run(ctx, constants.OcProbeTimeout, "whoami"); err != nil {
		return nil, errors.Wrapf(err, "oc is not logged in: %s", string(stderr))
	}

	if err := os.MkdirAll(filepath.Join(c.OutputDir, "logs"), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	c.statuses = map[string]*NodeStatus{}
	for _, node := range c.Nodes {
		c.statuses[node] = &NodeStatus{
			Node:    node,
			LogPath: filepath.Join(c.OutputDir, "logs", node+".log"),
		}
	}

	survivors := append([]string(nil), c.Nodes...)
	archives := map[string]string{}

	phases := []struct {
		phase Phase
		run   func(ctx context.Context, node string, archives map[string]string) error
	}{
		{PhaseStart, c.startPhase},
		{PhaseCollect, c.collectPhase},
		{PhaseDownload, c.downloadPhase},
		{PhaseCleanup, c.cleanupPhase},
	}

	for _, p := range phases {
		if p.phase == PhaseCleanup && !c.Cleanup {
			continue
		}
		survivors = c.runPhase(ctx, p.phase, survivors, archives, p.run)
		if len(survivors) == 0 {
			break
		}
	}

	for _, node := range survivors {
		c.statuses[node].Succeeded = true
	}

	summary := &Summary{}
	for _, node := range c.Nodes {
		summary.Nodes = append(summary.Nodes, *c.statuses[node])
	}
	sort.Slice(summary.Nodes, func(i, j int) bool {
		return summary.Nodes[i].Node < summary.Nodes[j].Node
	})
	return summary, nil
}

// runPhase fans a phase out over nodes and returns the nodes that passed.
// Worker errors are recorded per node, never returned through the group: a
// group error would cancel the shared context and take the other nodes down
// with it.
func (c *SosCollector) runPhase(ctx context.Context, phase Phase, nodes []string, archives map[string]string, run func(context.Context, string, map[string]string) error) []string {
	type phaseResult struct {
		node string
		err  error
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)
	results := make(chan phaseResult, len(nodes))

	for _, node := range nodes {
		node := node
		g.Go(func() error {
			err := run(ctx, node, archives)
			results <- phaseResult{node: node, err: err}
			c.progress(phase, node, err)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	var passed []string
	for result := range results {
		if result.err != nil {
			status := c.statuses[result.node]
			status.FailedPhase = phase
			status.Error = result.err.Error()
			c.appendLog(result.node, fmt.Sprintf("[%s] FAILED: %v", phase, result.err))
			continue
		}
		passed = append(passed, result.node)
	}
	sort.Strings(passed)
	return passed
}

func (c *SosCollector) startPhase(ctx context.Context, node string, _ map[string]string) error {
	_, stderr, err := c.Runner.Run(ctx, constants.DebugPodStartTimeout,
		"debug", "node/"+node, "--", "chroot", "/host", "true")
	if err != nil {
		return errors.Wrapf(err, "debug pod did not start: %s", string(stderr))
	}
	c.appendLog(node, "[start] debug pod ok")
	return nil
}

func (c *SosCollector) collectPhase(ctx context.Context, node string, archives map[string]string) error {
	args := []string{"debug", "node/" + node, "--", "chroot", "/host"}
	args = append(args, ForwardedEnvPrefix()...)
	args = append(args, "toolbox", "sos", "report", "--batch", "--quiet")

	stdout, stderr, err := c.Runner.Run(ctx, constants.SosreportRunTimeout, args...)
	c.appendLog(node, "[collect] "+string(stdout))
	if err != nil {
		return errors.Wrapf(err, "sosreport failed: %s", string(stderr))
	}

	archive := sosArchiveRe.FindString(string(stdout))
	if archive == "" {
		return errors.New("sosreport completed but no archive path was reported")
	}
	c.setArchive(archives, node, archive)
	return nil
}

// downloadPhase tries three successively cruder strategies to get the
// archive off the node.
func (c *SosCollector) downloadPhase(ctx context.Context, node string, archives map[string]string) error {
	archive := c.getArchive(archives, node)
	if archive == "" {
		return errors.New("no archive recorded for node")
	}
	local := filepath.Join(c.OutputDir, node+"-"+filepath.Base(archive))

	strategies := []struct {
		name string
		run  func() (string, error)
	}{
		{"oc cp", func() (string, error) { return c.downloadViaCp(ctx, node, archive, local) }},
		{"cat redirect", func() (string, error) { return c.downloadViaCat(ctx, node, archive, local) }},
		{"tar stream", func() (string, error) { return c.downloadViaTar(ctx, node, archive, local) }},
	}

	var attempts *multierror.Error
	for _, strategy := range strategies {
		saved, err := strategy.run()
		if err != nil {
			attempts = multierror.Append(attempts, errors.Wrap(err, strategy.name))
			c.appendLog(node, fmt.Sprintf("[download] %s failed: %v", strategy.name, err))
			continue
		}
		c.appendLog(node, fmt.Sprintf("[download] %s -> %s", strategy.name, saved))
		c.statuses[node].Archive = saved
		return nil
	}
	return errors.Wrap(attempts.ErrorOrNil(), "all download strategies failed")
}

func (c *SosCollector) downloadViaCp(ctx context.Context, node, archive, local string) (string, error) {
	_, stderr, err := c.Runner.Run(ctx, constants.DownloadTimeout,
		"debug", "node/"+node, "--", "chroot", "/host", "test", "-f", archive)
	if err != nil {
		return "", errors.Wrapf(err, "archive not present: %s", string(stderr))
	}
	_, stderr, err = c.Runner.Run(ctx, constants.DownloadTimeout,
		"cp", "node-debug-"+node+":"+archive, local)
	if err != nil {
		return "", errors.Wrapf(err, "oc cp failed: %s", string(stderr))
	}
	return local, nil
}

func (c *SosCollector) downloadViaCat(ctx context.Context, node, archive, local string) (string, error) {
	stdout, stderr, err := c.Runner.Run(ctx, constants.DownloadTimeout,
		"debug", "node/"+node, "--", "chroot", "/host", "cat", archive)
	if err != nil {
		return "", errors.Wrapf(err, "cat failed: %s", string(stderr))
	}
	if err := os.WriteFile(local, stdout, 0o600); err != nil {
		return "", errors.Wrap(err, "failed to write archive")
	}
	return local, nil
}

func (c *SosCollector) downloadViaTar(ctx context.Context, node, archive, local string) (string, error) {
	stdout, stderr, err := c.Runner.Run(ctx, constants.DownloadTimeout,
		"debug", "node/"+node, "--", "chroot", "/host",
		"tar", "-C", filepath.Dir(archive), "-cf", "-", filepath.Base(archive))
	if err != nil {
		return "", errors.Wrapf(err, "tar stream failed: %s", string(stderr))
	}
	saved := local + ".tar"
	if err := os.WriteFile(saved, stdout, 0o600); err != nil {
		return "", errors.Wrap(err, "failed to write archive")
	}
	return saved, nil
}

func (c *SosCollector) cleanupPhase(ctx context.Context, node string, archives map[string]string) error {
	archive := c.getArchive(archives, node)
	if archive == "" {
		return nil
	}
	_, stderr, err := c.Runner.Run(ctx, constants.CleanupTimeout,
		"debug", "node/"+node, "--", "chroot", "/host", "rm", "-f", archive)
	if err != nil {
		return errors.Wrapf(err, "cleanup failed: %s", string(stderr))
	}
	c.appendLog(node, "[cleanup] removed "+archive)
	return nil
}

func (c *SosCollector) setArchive(archives map[string]string, node, archive string) {
	c.archiveLock.Lock()
	defer c.archiveLock.Unlock()
	archives[node] = archive
}

func (c *SosCollector) getArchive(archives map[string]string, node string) string {
	c.archiveLock.Lock()
	defer c.archiveLock.Unlock()
	return archives[node]
}

func (c *SosCollector) progress(phase Phase, node string, err error) {
	c.printLock.Lock()
	defer c.printLock.Unlock()
	if err != nil {
		fmt.Printf("[%s] %s: FAILED (%v)\n", phase, node, err)
		return
	}
	fmt.Printf("[%s] %s: ok\n", phase, node)
}

func (c *SosCollector) appendLog(node, line string) {
	status, ok := c.statuses[node]
	if !ok {
		return
	}
	f, err := os.OpenFile(status.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		klog.V(1).Infof("could not append to %s: %v", status.LogPath, err)
		return
	}
	defer f.Close()
	fmt.Fprintln(f, time.Now().UTC().Format(time.RFC3339), line)
}
