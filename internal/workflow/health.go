package workflow

import "time"

// ServerHealth summarizes the encoder's availability as last probed.
type ServerHealth struct {
	Status    string
	Ready     bool
	Detail    string
	CheckedAt time.Time
}

// HealthyServer constructs a ready ServerHealth record.
func HealthyServer(status string, at time.Time) ServerHealth {
	return ServerHealth{Status: status, Ready: true, CheckedAt: at}
}

// UnhealthyServer constructs an unhealthy ServerHealth record with context detail.
func UnhealthyServer(status, detail string, at time.Time) ServerHealth {
	return ServerHealth{Status: status, Ready: false, Detail: detail, CheckedAt: at}
}
