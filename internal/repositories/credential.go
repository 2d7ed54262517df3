package repositories

import (
	"context"
	"database/sql"

	"github.com/desertthunder/hivefm/internal/models"
)

// CredentialRepository persists the OAuth session as a single client_state record.
type CredentialRepository struct {
	state *StateRepository
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{state: NewStateRepository(db)}
}

// LoadAuth returns the stored record, or nil when none exists.
func (r *CredentialRepository) LoadAuth(ctx context.Context) (*models.PersistedAuth, error) {
	var rec models.PersistedAuth
	ok, err := r.state.Get(ctx, AuthKey, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r *CredentialRepository) SaveAuth(ctx context.Context, auth models.PersistedAuth) error {
	return r.state.Put(ctx, AuthKey, auth)
}

func (r *CredentialRepository) DeleteAuth(ctx context.Context) error {
	return r.state.Delete(ctx, AuthKey)
}
