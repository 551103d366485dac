// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/lromero/labchat/internal/domain"
)

// ErrNotFound is returned by id-addressed operations when no row matches.
var ErrNotFound = errors.New("credential not found")

// Repository defines the interface for persisting credential records.
// Authorization is not this layer's concern: the command interpreter checks
// the admin gate before any Repository call is made.
type Repository interface {
	// Create inserts a credential and returns the stored row, id and
	// timestamp assigned.
	Create(ctx context.Context, username, program, password string) (*domain.Credential, error)

	// List returns credentials newest first. limit <= 0 means no cap.
	List(ctx context.Context, limit int) ([]domain.Credential, error)

	// Search finds credentials. An all-digits term matches by exact id;
	// anything else substring-matches username OR program.
	Search(ctx context.Context, term string) ([]domain.Credential, error)

	// Get retrieves a credential by id, nil when absent.
	Get(ctx context.Context, id int64) (*domain.Credential, error)

	// Update applies the non-nil fields and bumps the row timestamp.
	// Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, id int64, upd domain.CredentialUpdate) error

	// Delete removes a credential and returns its username.
	// Returns ErrNotFound if the id does not exist.
	Delete(ctx context.Context, id int64) (string, error)

	// UpdatePassword replaces the password and returns the row's username.
	// Returns ErrNotFound if the id does not exist.
	UpdatePassword(ctx context.Context, id int64, pw string) (string, error)

	// Stats summarizes the table: total rows, top-5 programs, newest row.
	Stats(ctx context.Context) (*domain.CredentialStats, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
