package main

import (
	"github.com/openshift-netlab/netdiag/cmd/netdiag/cli"
)

func main() {
	cli.InitAndExecute()
}
