package frr

import (
	"regexp"
	"strings"
)

// Section names as they appear after "###### show " in dump_frr files.
const (
	SectionRunningConfig = "running-config"
	SectionBGPNeighbors  = "bgp neighbor"
	SectionRoutesV4      = "ip bgp"
	SectionRoutesV6      = "bgp ipv6"
)

var (
	sectionMarkerRe = regexp.MustCompile(`(?m)^######\s+show\s+(.+?)\s*$`)

	// Any line starting with ###### ends a section, named or not; dumps use
	// bare ###### lines as dividers.
	sectionEndRe = regexp.MustCompile(`(?m)^######`)
)

// ExtractSection returns the text between the "###### show <name>" marker and
// the next line starting with "######", trimmed. ok is false when the marker
// is absent; absence is not an error, it just means FRR state was not dumped.
func ExtractSection(dump, name string) (section string, ok bool) {
	for _, loc := range sectionMarkerRe.FindAllStringSubmatchIndex(dump, -1) {
		if dump[loc[2]:loc[3]] != name {
			continue
		}
		rest := dump[loc[1]:]
		end := len(rest)
		if next := sectionEndRe.FindStringIndex(rest); next != nil {
			end = next[0]
		}
		return strings.TrimSpace(rest[:end]), true
	}
	return "", false
}

// NormalizeConfig trims per-line whitespace and drops blank lines so that
// configurations rendered with different indentation compare equal.
func NormalizeConfig(config string) string {
	var out []string
	for _, line := range strings.Split(config, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// ConfigsInSync compares two FRR configurations for strict textual equality
// after whitespace normalization. There is no semantic diffing; a reordered
// but equivalent configuration counts as out of sync.
func ConfigsInSync(live, applied string) bool {
	return NormalizeConfig(live) == NormalizeConfig(applied)
}
