package domain

import "time"

// Credential is the bookmaker session token published by the refresh
// scheduler and read by the dispatch path. Values are immutable; refresh
// publishes a new value rather than mutating the old one.
type Credential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the credential can still authenticate at now.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt)
}
