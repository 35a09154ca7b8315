package models

import "time"

// RefreshToken is one persisted login session. The opaque Token value is the
// only copy the client ever holds; rotation revokes the row and issues a new
// one, so a replayed token is detectable. Rows are never serialized to
// clients.
type RefreshToken struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Token     string     `db:"token"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	Revoked   bool       `db:"revoked"`
	RevokedAt *time.Time `db:"revoked_at"`
	IPAddress string     `db:"ip_address"`
	UserAgent string     `db:"user_agent"`
}

// ActiveAt reports whether the session may still be exchanged at the given
// instant.
func (t *RefreshToken) ActiveAt(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
