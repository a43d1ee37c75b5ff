package acquisition

// CorruptionTracker counts consecutive corrupted frames and reports the
// moment the run reaches the configured threshold. A valid frame rearms it,
// so a sustained burst raises exactly one notification.
type CorruptionTracker struct {
	threshold int
	count     int
}

func NewCorruptionTracker(threshold int) *CorruptionTracker {
	if threshold <= 0 {
		threshold = DefaultCorruptThreshold
	}
	return &CorruptionTracker{threshold: threshold}
}

// Observe feeds one frame verdict into the tracker. It returns true exactly
// when the current run of corrupted frames reaches the threshold.
func (c *CorruptionTracker) Observe(valid bool) bool {
	if valid {
		c.count = 0
		return false
	}
	c.count++
	return c.count == c.threshold
}

// Reset clears the current run, for example after the concentrator has been
// restarted.
func (c *CorruptionTracker) Reset() {
	c.count = 0
}

// Count returns the length of the current run of corrupted frames.
func (c *CorruptionTracker) Count() int {
	return c.count
}
