package feed

import "time"

// DefaultStaleThreshold is how old a feed header may be before the snapshot
// is reported as stale.
const DefaultStaleThreshold = 15 * time.Minute

// StaleDetector flags snapshots whose header timestamp is too old to trust.
type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{
		threshold: DefaultStaleThreshold,
	}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

// Check reports whether snap is stale at currentTime. A snapshot without a
// header timestamp cannot be judged and is not flagged.
func (d *StaleDetector) Check(snap *Snapshot, currentTime time.Time) bool {
	if snap == nil {
		return true
	}
	if !snap.HasTimestamp() {
		return false
	}
	return d.Age(snap, currentTime) > d.threshold
}

// Age is how long ago the feed was generated.
func (d *StaleDetector) Age(snap *Snapshot, currentTime time.Time) time.Duration {
	if snap == nil || !snap.HasTimestamp() {
		return 0
	}
	return currentTime.Sub(snap.CreatedAt)
}
