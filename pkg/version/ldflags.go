package version

// Set at build time via -ldflags "-X github.com/openshift-netlab/netdiag/pkg/version.version=..."
var (
	version   string
	gitSHA    string
	buildTime string
)
