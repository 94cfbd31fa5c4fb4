package store

import (
	"context"

	"forest-fashion/internal/models"

	"github.com/jmoiron/sqlx"
)

const userColumns = "id, name, email, password_hash, role, created_at"

// CreateUser inserts a user. A taken email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.GetContext(ctx, &u.CreatedAt, `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role)
	return translate(err)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email = $1", email); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetUsersByIDs retrieves multiple users by IDs
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = s.db.SelectContext(ctx, &users, s.db.Rebind(query), args...)
	return users, err
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", hash, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AdminExists reports whether any admin account is present.
func (s *Store) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)", models.RoleAdmin)
	return exists, err
}

// ReplacePasswordReset stores a reset token, dropping any earlier token of
// the same user.
func (s *Store) ReplacePasswordReset(ctx context.Context, r *models.PasswordReset) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE user_id = $1", r.UserID); err != nil {
		return err
	}
	err = tx.GetContext(ctx, &r.CreatedAt, `
		INSERT INTO password_resets (token, user_id, email, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		r.Token, r.UserID, r.Email, r.CreatedAt)
	if err != nil {
		return translate(err)
	}
	return tx.Commit()
}

func (s *Store) GetPasswordReset(ctx context.Context, token string) (*models.PasswordReset, error) {
	var r models.PasswordReset
	err := s.db.GetContext(ctx, &r,
		"SELECT token, user_id, email, created_at FROM password_resets WHERE token = $1", token)
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *Store) DeletePasswordReset(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM password_resets WHERE token = $1", token)
	return err
}

const profileColumns = "user_id, first_name, last_name, email, phone, address, created_at, updated_at"

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// UpsertProfile creates the user's profile or replaces its fields.
func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) error {
	return s.db.GetContext(ctx, p, `
		INSERT INTO profiles (user_id, first_name, last_name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			updated_at = NOW()
		RETURNING `+profileColumns,
		p.UserID, p.FirstName, p.LastName, p.Email, p.Phone, p.Address)
}
