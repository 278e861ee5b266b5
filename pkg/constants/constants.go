// Package constants provides constants shared across the netdiag packages.
package constants

import "time"

const (
	// LIB_TRACER_NAME is the tracer name used for analyzer spans.
	LIB_TRACER_NAME = "netdiag"

	// ENV_PREFIX is the viper env prefix; NETDIAG_FOO binds to --foo.
	ENV_PREFIX = "NETDIAG"

	// OCBinEnv overrides the oc binary used for cluster access.
	OCBinEnv = "OC_BIN"
	// ToolboxImageEnv overrides the toolbox image used inside debug shells.
	ToolboxImageEnv = "TOOLBOX_IMAGE"
	// PolarionTokenEnv carries the Polarion personal access token.
	PolarionTokenEnv = "POLARION_TOKEN"

	// DefaultSosWorkers bounds the parallel node fan-out during collection.
	DefaultSosWorkers = 5

	// Subprocess timeouts. Starting a debug pod is quick, a full sosreport
	// run on a busy node is not. OcProbeTimeout bounds quick existence
	// checks that transfer nothing.
	DebugPodStartTimeout = 2 * time.Minute
	SosreportRunTimeout  = 20 * time.Minute
	DownloadTimeout      = 10 * time.Minute
	CleanupTimeout       = 1 * time.Minute
	OcProbeTimeout       = 10 * time.Second

	// DefaultMassClosureThreshold is the per-date closure count above which
	// a regression sweep is treated as suspected infrastructure noise rather
	// than individual product regressions. A tuning parameter, not a tuned
	// one.
	DefaultMassClosureThreshold = 50

	// Exit codes. 2 means a prerequisite or input validation failed before
	// any work started.
	ExitOK            = 0
	ExitFailure       = 1
	ExitPrerequisites = 2
)
