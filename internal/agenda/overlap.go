package agenda

import (
	"strconv"
	"strings"

	"gymcal/internal/model"
)

// Minutes converts "HH:MM" to minutes since midnight. Malformed input is
// outside the contract; unparsable parts count as zero.
func Minutes(hhmm string) int {
	h, m, _ := strings.Cut(strings.TrimSpace(hhmm), ":")
	hours, _ := strconv.Atoi(h)
	mins, _ := strconv.Atoi(m)
	return hours*60 + mins
}

// TimeOverlap reports whether [s1,e1) and [s2,e2) share any minute.
// Slots that only touch (e1 == s2) do not overlap.
func TimeOverlap(s1, e1, s2, e2 string) bool {
	return Minutes(s1) < Minutes(e2) && Minutes(s2) < Minutes(e1)
}

// DateRangeOverlap reports whether the closed ranges [s1,e1] and [s2,e2]
// share a day. Ranges touching on a boundary day do overlap.
func DateRangeOverlap(s1, e1, s2, e2 model.Date) bool {
	return !s1.After(e2) && !s2.After(e1)
}
