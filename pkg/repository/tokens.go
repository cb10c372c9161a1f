package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fystack/walletstream/pkg/model"
)

// TokenStore persists resolved token identities. Insert surfaces
// ErrDuplicate on a unique violation so resolvers can fall back to a
// re-read when two resolutions race on the same address.
type TokenStore interface {
	FindByAddress(ctx context.Context, address string) (*model.Token, error)
	Insert(ctx context.Context, token *model.Token) error
}

type tokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) TokenStore {
	return &tokenStore{db: db}
}

func (s *tokenStore) FindByAddress(ctx context.Context, address string) (*model.Token, error) {
	var token model.Token
	err := s.db.WithContext(ctx).
		Where("address = ?", address).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapError(err)
	}
	return &token, nil
}

func (s *tokenStore) Insert(ctx context.Context, token *model.Token) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return wrapError(err)
	}
	return nil
}
