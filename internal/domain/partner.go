package domain

import "time"

// DutySession is a partner's availability window as tracked by heartbeats.
type DutySession struct {
	Partner       PartnerID
	OnDuty        bool
	LastHeartbeat time.Time
}

// Active reports whether the session still counts as on duty at now.
func (s DutySession) Active(now time.Time, ttl time.Duration) bool {
	if !s.OnDuty {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(s.LastHeartbeat) <= ttl
}
