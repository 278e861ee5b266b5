package frr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoutesLocalRoute(t *testing.T) {
	section := ` *>  10.0.0.0/24  0.0.0.0  0  32768 i`

	routes, skipped := ParseRoutes(section)
	require.Len(t, routes, 1)
	assert.Empty(t, skipped)

	route := routes[0]
	assert.Equal(t, "10.0.0.0/24", route.Network)
	assert.Equal(t, "0.0.0.0", route.NextHop)
	assert.True(t, route.Valid)
	assert.True(t, route.Best)
	require.NotNil(t, route.Weight)
	assert.Equal(t, 32768, *route.Weight)
	assert.Equal(t, "i", route.Origin)
	assert.True(t, route.IsLocal())
}

func TestParseRoutesStatusFlags(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Route
	}{
		{
			name: "valid best",
			line: "*> 192.168.10.0/24  172.18.0.5  0  0 64512 i",
			want: Route{Valid: true, Best: true},
		},
		{
			name: "no valid flag means not valid whatever else is set",
			line: ">  192.168.10.0/24  172.18.0.5  0  0 64512 i",
			want: Route{Valid: false, Best: true},
		},
		{
			name: "rib failure",
			line: "r> 192.168.11.0/24  172.18.0.5  0  0 64512 i",
			want: Route{Valid: false, Best: true, RIBFailure: true},
		},
		{
			name: "stale",
			line: "*S 192.168.12.0/24  172.18.0.5  0  0 64512 i",
			want: Route{Valid: true, Stale: true},
		},
		{
			name: "removed",
			line: "*R 192.168.13.0/24  172.18.0.5  0  0 64512 i",
			want: Route{Valid: true, Removed: true},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			routes, skipped := ParseRoutes(test.line)
			require.Len(t, routes, 1)
			assert.Empty(t, skipped)
			got := routes[0]
			assert.Equal(t, test.want.Valid, got.Valid)
			assert.Equal(t, test.want.Best, got.Best)
			assert.Equal(t, test.want.RIBFailure, got.RIBFailure)
			assert.Equal(t, test.want.Stale, got.Stale)
			assert.Equal(t, test.want.Removed, got.Removed)
			assert.False(t, got.IsLocal())
		})
	}
}

func TestParseRoutesAlignedColumns(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantWeight int
		wantPath   string
		wantLocal  bool
	}{
		{
			name:       "local route with blank locprf",
			line:       "*> 10.0.0.0/24      0.0.0.0                  0         32768 i",
			wantWeight: 32768,
			wantPath:   "",
			wantLocal:  true,
		},
		{
			// Weight 0 and a one-hop path collapse to the same tokens as
			// locprf 0 and weight 64512; the column gap decides.
			name:       "learned route with zero weight and null nexthop",
			line:       "*> 10.20.0.0/24     0.0.0.0                  0             0 64512 i",
			wantWeight: 0,
			wantPath:   "64512",
			wantLocal:  false,
		},
		{
			name:       "ibgp route with locprf and multi-hop path",
			line:       "*> 10.30.0.0/24     172.18.0.5               0    100      0 64512 64513 i",
			wantWeight: 0,
			wantPath:   "64512 64513",
			wantLocal:  false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			routes, skipped := ParseRoutes(test.line)
			require.Len(t, routes, 1)
			assert.Empty(t, skipped)

			route := routes[0]
			require.NotNil(t, route.Weight)
			assert.Equal(t, test.wantWeight, *route.Weight)
			assert.Equal(t, test.wantPath, route.ASPath)
			assert.Equal(t, "i", route.Origin)
			assert.Equal(t, test.wantLocal, route.IsLocal())
		})
	}
}

func TestParseRoutesIPv6Continuation(t *testing.T) {
	section := `BGP table version is 2, local router ID is 10.0.0.1
   Network          Next Hop            Metric LocPrf Weight Path
*> 2001:db8:100::/64 fe80::d8a6:32ff:fe2a:55
                                             0        32768 i
*> fd00:10:96::/112 ::
                                             0        32768 i

Displayed  2 routes and 2 total paths
`

	routes, skipped := ParseRoutes(section)
	require.Len(t, routes, 2, "continuation lines must merge, not produce partial records")
	assert.Empty(t, skipped)

	first := routes[0]
	assert.Equal(t, "2001:db8:100::/64", first.Network)
	assert.Equal(t, "fe80::d8a6:32ff:fe2a:55", first.NextHop)
	require.NotNil(t, first.Weight)
	assert.Equal(t, 32768, *first.Weight)
	assert.Equal(t, "i", first.Origin)
	assert.False(t, first.IsLocal())

	// Null next hop plus IGP origin plus local weight is a local route.
	second := routes[1]
	assert.Equal(t, "::", second.NextHop)
	assert.True(t, second.IsLocal())
}

func TestParseRoutesSkipsHeaderNoise(t *testing.T) {
	section := `BGP table version is 4, local router ID is 10.0.0.1, vrf id 0
Status codes:  s suppressed, d damped, h history, * valid, > best, = multipath
Origin codes:  i - IGP, e - EGP, ? - incomplete

   Network          Next Hop            Metric LocPrf Weight Path
*> 10.0.0.0/24      0.0.0.0                  0         32768 i

Displayed  1 routes and 1 total paths
`

	routes, skipped := ParseRoutes(section)
	assert.Len(t, routes, 1)
	assert.Empty(t, skipped)
}

func TestParseRoutesReportsSkippedRows(t *testing.T) {
	section := `*> 10.0.0.0/24  0.0.0.0  0  32768 i
this row is not a route at all
*                  172.18.0.6     0  64512 i
`

	routes, skipped := ParseRoutes(section)
	assert.Len(t, routes, 1)
	require.Len(t, skipped, 2)
	assert.Equal(t, 2, skipped[0].Line)
	assert.Equal(t, "unrecognized row format", skipped[0].Reason)
}

func TestRouteIsLocal(t *testing.T) {
	weight := func(w int) *int { return &w }

	tests := []struct {
		name  string
		route Route
		want  bool
	}{
		{
			name:  "null v4 nexthop with local weight",
			route: Route{NextHop: "0.0.0.0", Origin: "i", Weight: weight(32768)},
			want:  true,
		},
		{
			name:  "null v6 nexthop with empty as path",
			route: Route{NextHop: "::", Origin: "i", Weight: weight(0)},
			want:  true,
		},
		{
			name:  "egp origin is never local",
			route: Route{NextHop: "0.0.0.0", Origin: "e", Weight: weight(32768)},
			want:  false,
		},
		{
			name:  "remote nexthop is never local",
			route: Route{NextHop: "172.18.0.5", Origin: "i", Weight: weight(32768)},
			want:  false,
		},
		{
			name:  "as path set and weight not local",
			route: Route{NextHop: "0.0.0.0", Origin: "i", Weight: weight(0), ASPath: "64512"},
			want:  false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.route.IsLocal())
		})
	}
}
