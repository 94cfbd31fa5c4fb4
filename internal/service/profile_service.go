package service

import (
	"context"
	"fmt"
	"strings"

	"forest-fashion/internal/models"
	"forest-fashion/internal/util"

	"go.uber.org/zap"
)

// ProfileService keeps the customer details used for shipping.
type ProfileService struct {
	profiles ProfileRepository
	logger   *zap.Logger
}

func NewProfileService(profiles ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles, logger: util.GetLogger()}
}

type ProfileInput struct {
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Address   *models.Address `json:"address"`
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, orNotFound(err, "Profile not found")
	}
	return p, nil
}

// Save creates or replaces the caller's profile. Every field, including the
// full address, is required.
func (s *ProfileService) Save(ctx context.Context, userID string, in ProfileInput) (*models.Profile, error) {
	if in.Address == nil {
		return nil, invalid("address", "All fields are required")
	}

	p := &models.Profile{
		UserID:    userID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   *in.Address,
	}
	if err := checkStruct(p); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			switch {
			case strings.HasPrefix(ve.Field, "address."):
				ve.Message = "Complete address is required"
			case strings.HasSuffix(ve.Message, "is required"):
				ve.Message = "All fields are required"
			}
		}
		return nil, err
	}

	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	s.logger.Info("Profile saved", zap.String("user_id", userID))
	return p, nil
}
