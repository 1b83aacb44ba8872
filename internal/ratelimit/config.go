package ratelimit

import "time"

// Limit caps requests per fixed window. Zero values mean no limit.
type Limit struct {
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Window      time.Duration `yaml:"window"       json:"window"`
}

// Enabled returns true if both the count and the window are set.
func (l Limit) Enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}
