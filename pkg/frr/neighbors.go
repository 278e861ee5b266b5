package frr

import (
	"regexp"
	"strconv"
	"strings"
)

const neighborBlockHeader = "BGP neighbor is "

// Each field is extracted independently so a block missing one of them still
// yields a usable record.
var (
	neighborAddrRe     = regexp.MustCompile(`^([^,\s]+)`)
	neighborRemoteASRe = regexp.MustCompile(`remote AS (\d+)`)
	neighborLocalASRe  = regexp.MustCompile(`local AS (\d+)`)
	neighborStateRe    = regexp.MustCompile(`BGP state = (\w+)`)
	neighborUptimeRe   = regexp.MustCompile(`up for ([\w:]+)`)
	neighborHostnameRe = regexp.MustCompile(`Hostname: (\S+)`)
)

// ParseNeighbors splits the "show bgp neighbor" section into per-peer blocks
// and extracts what it can from each.
func ParseNeighbors(section string) []Neighbor {
	blocks := strings.Split(section, neighborBlockHeader)
	if len(blocks) < 2 {
		return nil
	}

	var neighbors []Neighbor
	for _, block := range blocks[1:] {
		n := Neighbor{}
		if m := neighborAddrRe.FindStringSubmatch(block); m != nil {
			n.Address = m[1]
		}
		if n.Address == "" {
			continue
		}
		if m := neighborRemoteASRe.FindStringSubmatch(block); m != nil {
			n.RemoteASN = parseASN(m[1])
		}
		if m := neighborLocalASRe.FindStringSubmatch(block); m != nil {
			n.LocalASN = parseASN(m[1])
		}
		if m := neighborStateRe.FindStringSubmatch(block); m != nil {
			n.State = m[1]
		}
		if m := neighborUptimeRe.FindStringSubmatch(block); m != nil {
			n.Uptime = m[1]
		}
		if m := neighborHostnameRe.FindStringSubmatch(block); m != nil {
			n.Hostname = m[1]
		}
		neighbors = append(neighbors, n)
	}
	return neighbors
}

func parseASN(s string) uint32 {
	asn, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(asn)
}
