package repository

import (
	"context"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/model"
)

// UserStore reads the user directory. The pipeline never writes users; the
// admin flow that manages them lives elsewhere.
type UserStore interface {
	FindByWalletAddress(ctx context.Context, address string) (*model.MonitoredUser, error)
	ListWalletAddresses(ctx context.Context, family enum.ChainFamily, limit, offset int) ([]string, error)
}

type userStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) UserStore {
	return &userStore{db: db}
}

// FindByWalletAddress looks a user up by the already-normalized wallet
// address. Returns ErrNotFound when no user monitors the address.
func (s *userStore) FindByWalletAddress(ctx context.Context, address string) (*model.MonitoredUser, error) {
	var user model.MonitoredUser
	err := s.db.WithContext(ctx).
		Where("wallet_address = ?", address).
		First(&user).Error
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

func (s *userStore) ListWalletAddresses(ctx context.Context, family enum.ChainFamily, limit, offset int) ([]string, error) {
	var users []*model.MonitoredUser
	err := s.db.WithContext(ctx).
		Select("wallet_address").
		Where("chain_family = ?", family).
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, wrapError(err)
	}
	return lo.Map(users, func(u *model.MonitoredUser, _ int) string {
		return u.WalletAddress
	}), nil
}
