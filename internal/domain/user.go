package domain

import "time"

// User is an account that can sign in. Users are created by signup and
// never change afterwards.
type User struct {
	ID int64
	// Username is unique and at most 30 characters.
	Username string
	// PasswordHash is a bcrypt hash; the raw password is never stored.
	PasswordHash string
	CreatedAt    time.Time
}
