package calendar

import "sort"

// Calendar is the booked-dates set of one pass: sorted by Start, with no two
// ranges overlapping or touching. Values returned by Add and Remove keep
// that shape; callers never edit a Calendar in place.
type Calendar []DateRange

// Add merges r into cal and returns the new calendar. Ranges that overlap
// or sit exactly one day apart collapse into one.
func Add(cal Calendar, r DateRange) Calendar {
	all := make([]DateRange, 0, len(cal)+1)
	all = append(all, cal...)
	all = append(all, r)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start < all[j].Start
	})

	merged := Calendar{all[0]}
	for _, next := range all[1:] {
		last := &merged[len(merged)-1]
		if touches(*last, next) {
			if next.End > last.End {
				last.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// Remove drops every range equal to r on both ends. Partial overlaps are
// left alone: each approval adds exactly one range and cancellation undoes
// exactly that one.
func Remove(cal Calendar, r DateRange) Calendar {
	out := make(Calendar, 0, len(cal))
	for _, existing := range cal {
		if existing.Start == r.Start && existing.End == r.End {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// Has reports whether r is stored in cal as an exact range.
func Has(cal Calendar, r DateRange) bool {
	for _, existing := range cal {
		if existing == r {
			return true
		}
	}
	return false
}

// IsDateBooked reports whether d falls inside any booked range.
func IsDateBooked(cal Calendar, d Date) bool {
	for _, r := range cal {
		if r.Contains(d) {
			return true
		}
	}
	return false
}

// RangesOverlap is the closed-interval intersection test used for
// availability. Ranges that merely touch do not overlap.
func RangesOverlap(a, b DateRange) bool {
	return a.Start <= b.End && a.End >= b.Start
}

// IsAvailable reports whether no booked range intersects want.
func IsAvailable(cal Calendar, want DateRange) bool {
	for _, r := range cal {
		if RangesOverlap(r, want) {
			return false
		}
	}
	return true
}

// touches is the merge-time predicate: next starts no later than the day
// after last ends.
func touches(last, next DateRange) bool {
	return next.Start <= last.End.AddDays(1)
}
