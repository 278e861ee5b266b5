package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openshift-netlab/netdiag/pkg/version"
)

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("netdiag %s\n", version.Version())
			if sha := version.GitSHA(); sha != "" {
				fmt.Printf("git %s\n", sha)
			}
			return nil
		},
	}
}
