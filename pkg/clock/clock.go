package clock

import "time"

// Clock supplies the trusted wall-clock time used for raffle lifecycle
// decisions. The core never reads time.Now directly.
type Clock interface {
	Now() int64
}

// System is the production clock backed by time.Now.
type System struct{}

// Now returns the current Unix time in seconds.
func (System) Now() int64 {
	return time.Now().Unix()
}

// Manual is a settable clock for tests and replay tooling.
type Manual struct {
	Unix int64
}

// NewManual creates a manual clock starting at the given Unix time.
func NewManual(unix int64) *Manual {
	return &Manual{Unix: unix}
}

// Now returns the configured time.
func (m *Manual) Now() int64 {
	return m.Unix
}

// Advance moves the manual clock forward by d seconds.
func (m *Manual) Advance(d int64) {
	m.Unix += d
}
