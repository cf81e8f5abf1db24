package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"defi-quest-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserService manages profile data for wallet-keyed users.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// GetOrCreate returns the user for a wallet address, creating it on first
// contact.
func (s *UserService) GetOrCreate(walletAddress string) (*models.User, error) {
	return getOrCreateUser(s.DB, walletAddress)
}

// SaveProfile stores name and email, generating a deterministic avatar when
// the user has none.
func (s *UserService) SaveProfile(walletAddress, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, newProofError(ErrInvalidInput, "name is required")
	}
	if !emailRegex.MatchString(email) {
		return nil, newProofError(ErrInvalidInput, "invalid email format")
	}

	user, err := s.GetOrCreate(walletAddress)
	if err != nil {
		return nil, err
	}

	user.Name = name
	user.Email = email
	if user.AvatarURL == "" {
		user.AvatarURL = GenerateAvatarURL(walletAddress)
	}
	if err := s.DB.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return user, nil
}

// UpdateAvatar replaces the user's avatar URL.
func (s *UserService) UpdateAvatar(walletAddress, avatarURL string) (*models.User, error) {
	avatarURL = strings.TrimSpace(avatarURL)
	if avatarURL == "" || (!strings.HasPrefix(avatarURL, "http") && !strings.HasPrefix(avatarURL, "data:image")) {
		return nil, newProofError(ErrInvalidInput, "invalid avatar URL format")
	}

	user, err := s.GetOrCreate(walletAddress)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = avatarURL
	if err := s.DB.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	return user, nil
}

// GenerateAvatarURL derives a stable identicon URL from the wallet address.
func GenerateAvatarURL(walletAddress string) string {
	return "https://api.dicebear.com/7.x/identicon/svg?seed=" + strings.ToLower(walletAddress)
}

// getOrCreateUser is shared by the user service and the reward ledger so a
// reward write can create the user inside its own flow. Idempotent under
// concurrency via the unique index on wallet_address.
func getOrCreateUser(db *gorm.DB, walletAddress string) (*models.User, error) {
	wallet := strings.ToLower(walletAddress)

	var user models.User
	err := db.Where("wallet_address = ?", wallet).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = models.User{ID: uuid.NewString(), WalletAddress: wallet}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoNothing: true,
	}).Create(&user)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := db.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to load user after conflict: %w", err)
		}
	}
	return &user, nil
}
