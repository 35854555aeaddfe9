package types

import "time"

// Session is a server-side login session. Tokens handed to clients reference
// a session by ID so that logging out revokes them.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Provider  string    `json:"provider" db:"provider"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Recovery is a pending password recovery. Only the hash of the secret is
// stored.
type Recovery struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	SecretHash string    `db:"secret_hash"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

// AuthState is the client-side snapshot of the authentication status.
type AuthState struct {
	Status   bool  `json:"status"`
	UserData *User `json:"userData"`
}
