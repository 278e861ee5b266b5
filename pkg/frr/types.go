// Package frr parses FRR state out of a must-gather: the raw dump_frr text
// dumps produced on each node and the FRRConfiguration/FRRNodeState custom
// resources. Parsing is best effort over unversioned CLI text; rows that do
// not match the expected shape are reported as skipped, never guessed at.
package frr

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Router is one "router bgp" instance found in a running configuration.
type Router struct {
	ASN uint32 `json:"asn"`
	VRF string `json:"vrf"`
}

// Neighbor is one peer block from the "show bgp neighbor" dump section.
// Fields missing from the block stay zero valued.
type Neighbor struct {
	Address   string `json:"address"`
	RemoteASN uint32 `json:"remoteASN,omitempty"`
	LocalASN  uint32 `json:"localASN,omitempty"`
	State     string `json:"state,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	Hostname  string `json:"hostname,omitempty"`
}

// Established reports whether the BGP session is up.
func (n Neighbor) Established() bool {
	return n.State == "Established"
}

// Route is one row of a "show ip bgp" / "show bgp ipv6" table.
type Route struct {
	Network     string `json:"network"`
	NextHop     string `json:"nextHop"`
	StatusFlags string `json:"statusFlags"`

	Valid      bool `json:"valid"`
	Best       bool `json:"best"`
	RIBFailure bool `json:"ribFailure"`
	Stale      bool `json:"stale"`
	Removed    bool `json:"removed"`

	Metric *int   `json:"metric,omitempty"`
	LocPrf *int   `json:"locPrf,omitempty"`
	Weight *int   `json:"weight,omitempty"`
	ASPath string `json:"asPath,omitempty"`
	Origin string `json:"origin,omitempty"`
}

// IsLocal reports whether the route was originated by this node: null next
// hop, IGP origin, and either the locally-originated weight or an empty AS
// path.
func (r Route) IsLocal() bool {
	if r.NextHop != "0.0.0.0" && r.NextHop != "::" {
		return false
	}
	if r.Origin != "i" {
		return false
	}
	if r.Weight != nil && *r.Weight == 32768 {
		return true
	}
	return r.ASPath == ""
}

// SkipReason records a table row the route parser could not make sense of.
type SkipReason struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// ConfigRecord is the slice of an FRRConfiguration resource the analyzer
// cares about.
type ConfigRecord struct {
	Name         string                `json:"name"`
	Namespace    string                `json:"namespace,omitempty"`
	HasRawConfig bool                  `json:"hasRawConfig"`
	NodeSelector metav1.LabelSelector  `json:"nodeSelector,omitempty"`
	Neighbors    []ConfigNeighbor      `json:"neighbors,omitempty"`
	BFDProfiles  []string              `json:"bfdProfiles,omitempty"`
}

// ConfigNeighbor is a neighbor declared by an FRRConfiguration.
type ConfigNeighbor struct {
	Address    string `json:"address"`
	ASN        uint32 `json:"asn"`
	Port       uint16 `json:"port,omitempty"`
	BFDProfile string `json:"bfdProfile,omitempty"`
}

// DeclaresNeighbor reports whether the configuration declares a neighbor
// with the given address.
func (c ConfigRecord) DeclaresNeighbor(address string) bool {
	for _, n := range c.Neighbors {
		if n.Address == address {
			return true
		}
	}
	return false
}

// NodeState is the slice of an FRRNodeState resource the analyzer cares
// about: the per-node record of the configuration last handed to FRR.
type NodeState struct {
	Node             string `json:"node"`
	RunningConfig    string `json:"runningConfig,omitempty"`
	LastReloadStatus string `json:"lastReloadStatus,omitempty"`
}
