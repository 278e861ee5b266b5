package frr

import (
	"regexp"
	"strconv"
)

var routerRe = regexp.MustCompile(`(?m)^\s*router bgp (\d+)(?:\s+vrf\s+(\S+))?`)

// ParseRouters extracts every "router bgp" instance from a running
// configuration. The VRF defaults to "default" when unspecified.
func ParseRouters(runningConfig string) []Router {
	var routers []Router
	for _, m := range routerRe.FindAllStringSubmatch(runningConfig, -1) {
		asn, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		vrf := m[2]
		if vrf == "" {
			vrf = "default"
		}
		routers = append(routers, Router{ASN: uint32(asn), VRF: vrf})
	}
	return routers
}
