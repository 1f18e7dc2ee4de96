package domain

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// DateRange is a half-open interval of calendar days [CheckIn, CheckOut).
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateRange normalizes both ends to midnight UTC.
func NewDateRange(checkIn, checkOut time.Time) DateRange {
	return DateRange{CheckIn: Midnight(checkIn), CheckOut: Midnight(checkOut)}
}

// ParseDate parses a YYYY-MM-DD date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Midnight truncates t to the start of its calendar day, keeping the calendar date of t's own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Valid reports whether CheckOut is strictly after CheckIn.
func (r DateRange) Valid() bool { return r.CheckOut.After(r.CheckIn) }

// Nights is ceil((CheckOut-CheckIn) / 1 day).
func (r DateRange) Nights() int {
	d := r.CheckOut.Sub(r.CheckIn)
	if d <= 0 {
		return 0
	}
	n := int(d / day)
	if d%day != 0 {
		n++
	}
	return n
}

func (r DateRange) String() string {
	return r.CheckIn.Format(DateLayout) + ".." + r.CheckOut.Format(DateLayout)
}

// Overlaps is the canonical half-open test: s1 < e2 AND s2 < e1.
// A checkout day may be another booking's check-in day.
func Overlaps(a, b DateRange) bool {
	return a.CheckIn.Before(b.CheckOut) && b.CheckIn.Before(a.CheckOut)
}

// ConflictsByCases spells the overlap out as three explicit cases against an existing booking:
// the request starts inside it, the request ends inside it, or the request covers it.
// It must agree with Overlaps for every pair of valid ranges.
func ConflictsByCases(existing, req DateRange) bool {
	startsWithin := !existing.CheckIn.After(req.CheckIn) && existing.CheckOut.After(req.CheckIn)
	endsWithin := existing.CheckIn.Before(req.CheckOut) && !existing.CheckOut.Before(req.CheckOut)
	covers := !existing.CheckIn.Before(req.CheckIn) && !existing.CheckOut.After(req.CheckOut)
	return startsWithin || endsWithin || covers
}

// OverlapsInclusive treats both ranges as closed [start, end]. Only reporting windows use it.
func OverlapsInclusive(a, b DateRange) bool {
	return !a.CheckIn.After(b.CheckOut) && !b.CheckIn.After(a.CheckOut)
}

// DaysBetween lists every calendar date from a to b, both included, ascending.
func DaysBetween(a, b time.Time) []time.Time {
	cur, end := Midnight(a), Midnight(b)
	if cur.After(end) {
		return nil
	}
	out := make([]time.Time, 0, int(end.Sub(cur)/day)+1)
	for !cur.After(end) {
		out = append(out, cur)
		cur = cur.AddDate(0, 0, 1)
	}
	return out
}
