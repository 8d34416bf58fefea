package schedule

// Band is the urgency class of a machine's next repair.
type Band string

const (
	BandOverdue  Band = "Overdue"
	BandCritical Band = "Critical"
	BandWarning  Band = "Warning"
	BandHealthy  Band = "Healthy"
)

// Bands lists every band from most to least urgent.
var Bands = []Band{BandOverdue, BandCritical, BandWarning, BandHealthy}

const (
	// DueSoonDays is the upper bound of the Critical band and of the
	// due-for-repair report.
	DueSoonDays = 7
	// WarningDays is the upper bound of the Warning band.
	WarningDays = 30
)

// Classify maps remaining days to a band. Upper bounds are inclusive.
func Classify(remainingDays int) Band {
	switch {
	case remainingDays <= 0:
		return BandOverdue
	case remainingDays <= DueSoonDays:
		return BandCritical
	case remainingDays <= WarningDays:
		return BandWarning
	default:
		return BandHealthy
	}
}

// IsDueSoon reports whether a machine with the given remaining days needs repair
// within DueSoonDays, overdue machines included.
func IsDueSoon(remainingDays int) bool {
	return remainingDays <= DueSoonDays
}

// DueSoon reports whether b is Critical or Overdue.
func (b Band) DueSoon() bool {
	return b == BandOverdue || b == BandCritical
}

// ParseBand returns the band named s.
func ParseBand(s string) (Band, bool) {
	for _, b := range Bands {
		if string(b) == s {
			return b, true
		}
	}
	return "", false
}
