package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forest-fashion/internal/models"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContactService stores contact form messages and newsletter subscriptions.
type ContactService struct {
	contacts   ContactRepository
	newsletter NewsletterRepository
	logger     *zap.Logger
}

func NewContactService(contacts ContactRepository, newsletter NewsletterRepository) *ContactService {
	return &ContactService{contacts: contacts, newsletter: newsletter, logger: util.GetLogger()}
}

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (s *ContactService) Create(ctx context.Context, in ContactInput) (*models.Contact, error) {
	c := &models.Contact{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
		Status:  models.ContactStatusNew,
	}
	if err := checkStruct(c); err != nil {
		return nil, err
	}
	if err := s.contacts.CreateContact(ctx, c); err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}
	s.logger.Info("Contact message received", zap.String("contact_id", c.ID))
	return c, nil
}

func (s *ContactService) List(ctx context.Context) ([]models.Contact, error) {
	return s.contacts.ListContacts(ctx)
}

func (s *ContactService) UpdateStatus(ctx context.Context, id, status string) (*models.Contact, error) {
	if !oneOf(status, models.ContactStatuses) {
		return nil, invalid("status", "Invalid status")
	}
	c, err := s.contacts.UpdateContactStatus(ctx, id, status)
	if err != nil {
		return nil, orNotFound(err, "Contact not found")
	}
	return c, nil
}

// SubscribeResult tells a fresh subscription from a reactivated one.
type SubscribeResult int

const (
	Subscribed SubscribeResult = iota
	Reactivated
)

func (s *ContactService) Subscribe(ctx context.Context, email string) (SubscribeResult, error) {
	email = normalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return 0, invalid("email", "A valid email is required")
	}

	sub, err := s.newsletter.GetSubscription(ctx, email)
	switch {
	case err == nil && sub.Subscribed:
		return 0, invalid("email", "Email already subscribed")
	case err == nil:
		if err := s.newsletter.SetSubscribed(ctx, email, true); err != nil {
			return 0, fmt.Errorf("reactivate subscription: %w", err)
		}
		return Reactivated, nil
	case !errors.Is(err, store.ErrNotFound):
		return 0, fmt.Errorf("lookup subscription: %w", err)
	}

	if err := s.newsletter.CreateSubscription(ctx, &models.Subscription{Email: email, Subscribed: true}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, invalid("email", "Email already subscribed")
		}
		return 0, fmt.Errorf("create subscription: %w", err)
	}
	return Subscribed, nil
}

func (s *ContactService) Unsubscribe(ctx context.Context, email string) error {
	if err := s.newsletter.SetSubscribed(ctx, normalizeEmail(email), false); err != nil {
		return orNotFound(err, "Email not found")
	}
	return nil
}
