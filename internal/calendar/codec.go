package calendar

import (
	"encoding/json"
	"strings"
)

// Decode reads the JSON array stored on a pass. Empty, "null" and
// unparseable input all yield an empty calendar; entries with malformed
// dates are skipped. The result is re-merged so a hand-edited column still
// satisfies the Calendar invariants.
func Decode(raw string) Calendar {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Calendar{}
	}

	var ranges []DateRange
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return Calendar{}
	}

	cal := Calendar{}
	for _, r := range ranges {
		if r.Validate() != nil {
			continue
		}
		cal = Add(cal, r)
	}
	return cal
}

// DecodePtr is Decode for a nullable column.
func DecodePtr(raw *string) Calendar {
	if raw == nil {
		return Calendar{}
	}
	return Decode(*raw)
}

// Encode renders cal as the JSON array stored on a pass. A nil calendar
// encodes as "[]".
func Encode(cal Calendar) string {
	if cal == nil {
		cal = Calendar{}
	}
	data, err := json.Marshal(cal)
	if err != nil {
		// DateRange holds only strings; Marshal cannot fail on it.
		return "[]"
	}
	return string(data)
}
