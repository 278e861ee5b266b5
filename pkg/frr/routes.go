package frr

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Status flags, network, next hop, then whatever is left of the row.
	routeLineRe = regexp.MustCompile(`^([sdhi*>=rSR ]{0,5}?)\s*([0-9A-Fa-f.:]+/\d+)\s+([0-9A-Fa-f.:]+)\s*(.*)$`)

	// Fallback for rows whose column spacing has collapsed: optional
	// metric, optional locprf, weight, AS path, origin code, matched
	// greedily left to right the way the columns print. Ambiguous when a
	// column is blank; parseRouteColumns handles the aligned case exactly.
	routeAttrsRe = regexp.MustCompile(`^(?:(\d+)\s+)?(?:(\d+)\s+)?(\d+)\s*((?:\d+ ?)*?)\s*([ie?])$`)

	// Metric, locprf and weight print right-aligned, so two or more spaces
	// separate them, while weight, AS path and origin run single-spaced.
	columnGapRe = regexp.MustCompile(`\s{2,}`)

	// FRR wraps long IPv6 rows; the attribute columns then print alone on
	// the following line.
	routeContinuationRe = regexp.MustCompile(`^\s+(?:\d+\s+)*(?:\d+ ?)*[ie?]\s*$`)
)

var routeNoiseMarkers = []string{
	"BGP table version",
	"Status codes:",
	"Origin codes:",
	"Nexthop codes:",
	"RPKI validation codes:",
	"Network",
	"Displayed",
	"Total number of prefixes",
	"Default local pref",
	"Route Distinguisher:",
	"No BGP prefixes displayed",
	"% No BGP",
}

// ParseRoutes scans a "show ip bgp" / "show bgp ipv6" table section. Rows
// that look like route entries but do not match the expected column layout
// are returned as skip reasons rather than dropped silently.
func ParseRoutes(section string) ([]Route, []SkipReason) {
	var routes []Route
	var skipped []SkipReason

	lines := strings.Split(section, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" || isRouteNoise(line) {
			continue
		}

		m := routeLineRe.FindStringSubmatch(line)
		if m == nil {
			skipped = append(skipped, SkipReason{
				Line:   i + 1,
				Text:   strings.TrimSpace(line),
				Reason: "unrecognized row format",
			})
			continue
		}

		route := Route{
			Network:     m[2],
			NextHop:     m[3],
			StatusFlags: strings.TrimSpace(m[1]),
		}
		route.Valid = strings.Contains(route.StatusFlags, "*")
		route.Best = strings.Contains(route.StatusFlags, ">")
		route.RIBFailure = strings.Contains(route.StatusFlags, "r")
		route.Stale = strings.Contains(route.StatusFlags, "S")
		route.Removed = strings.Contains(route.StatusFlags, "R")

		rest := strings.TrimSpace(m[4])
		if rest == "" && i+1 < len(lines) && routeContinuationRe.MatchString(lines[i+1]) {
			rest = strings.TrimSpace(lines[i+1])
			i++
		}
		parseRouteAttrs(&route, rest)

		routes = append(routes, route)
	}
	return routes, skipped
}

func parseRouteAttrs(route *Route, rest string) {
	if rest == "" {
		return
	}
	if len(rest) == 1 && strings.ContainsAny(rest, "ie?") {
		route.Origin = rest
		return
	}
	if clusters := columnGapRe.Split(rest, -1); len(clusters) > 1 {
		if parseRouteColumns(route, clusters) {
			return
		}
	}
	m := routeAttrsRe.FindStringSubmatch(rest)
	if m == nil {
		// Attributes stay unset; the row itself is still a route.
		return
	}
	route.Metric = parseIntField(m[1])
	route.LocPrf = parseIntField(m[2])
	route.Weight = parseIntField(m[3])
	route.ASPath = strings.TrimSpace(m[4])
	route.Origin = m[5]
}

// parseRouteColumns reads a row whose column alignment survived: the wide-gap
// clusters before the last are metric and locprf in print order, the last
// cluster is weight, AS path hops and the origin code. Returns false when the
// clusters do not fit that shape, leaving the caller to the greedy fallback.
func parseRouteColumns(route *Route, clusters []string) bool {
	last := strings.Fields(clusters[len(clusters)-1])
	if len(last) < 2 {
		return false
	}
	origin := last[len(last)-1]
	if len(origin) != 1 || !strings.ContainsAny(origin, "ie?") {
		return false
	}
	weight := parseIntField(last[0])
	if weight == nil {
		return false
	}
	hops := last[1 : len(last)-1]
	for _, hop := range hops {
		if parseIntField(hop) == nil {
			return false
		}
	}

	lead := clusters[:len(clusters)-1]
	if len(lead) > 2 {
		return false
	}
	var metric, locprf *int
	for i, cluster := range lead {
		v := parseIntField(strings.TrimSpace(cluster))
		if v == nil {
			return false
		}
		if i == 0 {
			metric = v
		} else {
			locprf = v
		}
	}

	route.Metric = metric
	route.LocPrf = locprf
	route.Weight = weight
	route.ASPath = strings.Join(hops, " ")
	route.Origin = origin
	return true
}

func parseIntField(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func isRouteNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, marker := range routeNoiseMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	// The column header row.
	return strings.Contains(line, "Next Hop")
}
