package store

import (
	"context"

	"forest-fashion/internal/models"
)

const contactColumns = "id, name, email, subject, message, status, created_at"

func (s *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	err := s.db.GetContext(ctx, &c.CreatedAt, `
		INSERT INTO contacts (id, name, email, subject, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.ID, c.Name, c.Email, c.Subject, c.Message, c.Status)
	return err
}

// ListContacts returns contact messages newest first.
func (s *Store) ListContacts(ctx context.Context) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := s.db.SelectContext(ctx, &contacts,
		"SELECT "+contactColumns+" FROM contacts ORDER BY created_at DESC")
	return contacts, err
}

func (s *Store) UpdateContactStatus(ctx context.Context, id, status string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.GetContext(ctx, &c,
		"UPDATE contacts SET status = $1 WHERE id = $2 RETURNING "+contactColumns, status, id)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) GetSubscription(ctx context.Context, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub,
		"SELECT email, subscribed, created_at FROM newsletter_subscriptions WHERE email = $1", email)
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	err := s.db.GetContext(ctx, &sub.CreatedAt, `
		INSERT INTO newsletter_subscriptions (email, subscribed)
		VALUES ($1, $2)
		RETURNING created_at`,
		sub.Email, sub.Subscribed)
	return translate(err)
}

func (s *Store) SetSubscribed(ctx context.Context, email string, subscribed bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE newsletter_subscriptions SET subscribed = $1 WHERE email = $2", subscribed, email)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
