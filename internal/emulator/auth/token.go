// Package auth issues and validates the bearer tokens of the billing emulator.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/models"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

const (
	tokenLength = 32
	tokenTTL    = 24 * time.Hour
)

// ErrInvalidCredentials is returned when email or password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

type tokenRecord struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// TokenManager manages bearer tokens.
type TokenManager struct {
	store *store.Store
	now   func() time.Time
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(s *store.Store) *TokenManager {
	return &TokenManager{store: s, now: time.Now}
}

// Login verifies the credentials and issues a token for the user.
func (tm *TokenManager) Login(email, password string) (*models.User, string, error) {
	user, err := tm.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := tm.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GenerateToken generates a new access token for userID and stores it.
func (tm *TokenManager) GenerateToken(userID string) (string, error) {
	token, err := generateRandomToken(tokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	// Store token with expiration time.
	record := tokenRecord{UserID: userID, ExpiresAt: tm.now().Add(tokenTTL).Unix()}
	if err := tm.store.Put(store.BucketTokens, token, record); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return token, nil
}

// ValidateToken returns the user the token was issued to. ok is false for
// unknown and expired tokens.
func (tm *TokenManager) ValidateToken(token string) (userID string, ok bool, err error) {
	var record tokenRecord
	if err := tm.store.Get(store.BucketTokens, token, &record); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get token: %w", err)
	}

	// Check if token is expired.
	if tm.now().Unix() > record.ExpiresAt {
		// Delete expired token.
		_ = tm.store.DeleteString(store.BucketTokens, token)
		return "", false, nil
	}

	return record.UserID, true, nil
}

// RevokeToken revokes an access token.
func (tm *TokenManager) RevokeToken(token string) error {
	return tm.store.DeleteString(store.BucketTokens, token)
}

// HashPassword hashes a password for storage on a user record.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
