// Package quality selects download quality codes from the catalog a
// part advertises. Both picks are pure decisions over a code-to-label
// mapping and are independent of each other: a part may get both a
// standard-tier and an HDR download.
package quality

import "strings"

// standardTiers is the allow-list of known standard quality codes,
// 360P through 8K.
var standardTiers = map[int]struct{}{
	16:  {},
	32:  {},
	64:  {},
	80:  {},
	112: {},
	116: {},
	120: {},
	125: {},
	127: {},
}

// hdrMarkers are the label substrings identifying HDR variants. The
// second is "Dolby Vision" as the platform labels it.
var hdrMarkers = []string{"HDR", "杜比视界"}

// PickStandard returns the numeric maximum of the catalog codes within
// the known standard tiers, falling back to the overall numeric
// maximum when none match. ok is false only for an empty catalog.
func PickStandard(qualities map[int]string) (code int, ok bool) {
	if len(qualities) == 0 {
		return 0, false
	}

	best, found := 0, false
	overall := 0
	first := true
	for qn := range qualities {
		if first || qn > overall {
			overall = qn
			first = false
		}
		if _, allowed := standardTiers[qn]; allowed && (!found || qn > best) {
			best = qn
			found = true
		}
	}
	if found {
		return best, true
	}
	return overall, true
}

// PickHDR returns the numeric maximum of the codes whose label carries
// an HDR marker, or ok=false when the catalog has no HDR variant.
func PickHDR(qualities map[int]string) (code int, ok bool) {
	best, found := 0, false
	for qn, label := range qualities {
		if !hasHDRMarker(label) {
			continue
		}
		if !found || qn > best {
			best = qn
			found = true
		}
	}
	return best, found
}

func hasHDRMarker(label string) bool {
	for _, marker := range hdrMarkers {
		if strings.Contains(label, marker) {
			return true
		}
	}
	return false
}
