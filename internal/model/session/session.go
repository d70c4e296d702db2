package session

import "time"

// Session links a streaming handshake to the query it was opened with.
type Session struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Expired reports whether the session was last seen more than ttl before now.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastSeen) > ttl
}
