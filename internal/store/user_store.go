package store

import (
	"context"

	"fundledger/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Get(ctx context.Context, id string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, referred_by, referrals, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return models.User{}, translateNotFound(err)
	}
	return row, nil
}

func (s *UserStore) Save(ctx context.Context, tx Execer, user models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, referred_by, referrals, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			referred_by = EXCLUDED.referred_by,
			referrals = EXCLUDED.referrals
	`, user.ID, user.Name, user.Email, user.ReferredBy, user.Referrals, user.CreatedAt)
	return err
}

// UpdateReferrals replaces only the downline list, a partial update used
// when a user refers someone new.
func (s *UserStore) UpdateReferrals(ctx context.Context, tx Execer, id string, referrals models.StringList) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET referrals = $1 WHERE id = $2
	`, referrals, id)
	return err
}

// StreamAll lists every user. The distribution batch walks this set and
// keeps those holding a funded account of the session's type.
func (s *UserStore) StreamAll(ctx context.Context) ([]models.User, error) {
	var rows []models.User
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, email, referred_by, referrals, created_at
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
