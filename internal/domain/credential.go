package domain

import (
	"time"
)

// Credential is one persisted row of the credential table: a username for a
// licensed program plus its password. Passwords are stored and displayed in
// plaintext on purpose; this is an admin inventory tool, not an identity
// system.
type Credential struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Program   string    `json:"program"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// ProgramCount is one entry of the per-program usage ranking.
type ProgramCount struct {
	Program string `json:"program"`
	Count   int    `json:"count"`
}

// CredentialStats summarizes the credential table.
type CredentialStats struct {
	Total       int            `json:"total"`
	TopPrograms []ProgramCount `json:"top_programs"`
	Newest      *Credential    `json:"newest,omitempty"`
}

// CredentialUpdate carries the optional fields of a modify operation.
// Nil fields are left untouched.
type CredentialUpdate struct {
	Username *string
	Program  *string
	Password *string
}

// Empty reports whether no field is set.
func (u CredentialUpdate) Empty() bool {
	return u.Username == nil && u.Program == nil && u.Password == nil
}
