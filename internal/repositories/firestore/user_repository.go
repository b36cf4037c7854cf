package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/artisanshop/api/internal/domain"
	pfirestore "github.com/artisanshop/api/internal/platform/firestore"
	"github.com/artisanshop/api/internal/repositories"
)

const userCollection = "users"

type userDocument struct {
	DisplayName string    `firestore:"displayName"`
	Email       string    `firestore:"email"`
	PhoneNumber string    `firestore:"phoneNumber"`
	Roles       []string  `firestore:"roles"`
	IsActive    bool      `firestore:"isActive"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// UserRepository reads buyer/seller profile projections from Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil),
	}, nil
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// FindByID loads the user profile by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}

	profile := domain.UserProfile{
		ID:          doc.ID,
		DisplayName: doc.Data.DisplayName,
		Email:       strings.TrimSpace(doc.Data.Email),
		PhoneNumber: strings.TrimSpace(doc.Data.PhoneNumber),
		Roles:       append([]string(nil), doc.Data.Roles...),
		IsActive:    doc.Data.IsActive,
		CreatedAt:   doc.Data.CreatedAt,
		UpdatedAt:   doc.Data.UpdatedAt,
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = doc.UpdateTime
	}
	return profile, nil
}
