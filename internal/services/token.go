package services

import (
	"context"
	"time"

	"chatserver/internal/config"
	"chatserver/internal/models"
	"chatserver/internal/utils"
	"chatserver/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// TokenPair is one issued access/refresh token set.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// TokenService issues, verifies and rotates token pairs. A token's validity
// is proven by signature and expiry alone; revocation is tracked out-of-band
// in the RevocationStore. The user row's refresh_token column holds the
// single currently-valid refresh token per user.
type TokenService struct {
	db          *gorm.DB
	revocations *RevocationStore
	cfg         *config.JWTConfig
	log         zerolog.Logger
}

func NewTokenService(db *gorm.DB, revocations *RevocationStore, cfg *config.JWTConfig) *TokenService {
	return &TokenService{
		db:          db,
		revocations: revocations,
		cfg:         cfg,
		log:         logger.Module("token"),
	}
}

// IssuePair signs a fresh access/refresh pair for the user and stores the
// refresh token as the user's current session.
func (s *TokenService) IssuePair(ctx context.Context, userID uint) (*TokenPair, error) {
	access, accessExp, err := utils.GenerateAccessToken(userID, s.cfg.AccessExpire)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := utils.GenerateRefreshToken(userID, s.cfg.RefreshExpire)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", refresh).Error
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess verifies an access token's signature and expiry. Revocation
// is checked separately (and first) by callers on the hot path.
func (s *TokenService) VerifyAccess(tokenString string) (*utils.TokenClaims, error) {
	return utils.ParseAccessToken(tokenString)
}

// Rotate exchanges a refresh token for a fresh pair. The presented token
// must verify and still be the user's stored refresh token: the overwrite is
// a compare-and-swap, so of two concurrent rotations with the same token
// exactly one wins and the loser gets ErrInvalidRefreshToken. On success both
// old tokens are revoked for the remainder of their natural lifetimes.
func (s *TokenService) Rotate(ctx context.Context, oldRefresh, oldAccess string) (*TokenPair, error) {
	claims, err := utils.ParseRefreshToken(oldRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if revoked, err := s.revocations.IsRevoked(ctx, oldRefresh); err != nil {
		return nil, err
	} else if revoked {
		return nil, ErrInvalidRefreshToken
	}

	userID := claims.UserID

	access, accessExp, err := utils.GenerateAccessToken(userID, s.cfg.AccessExpire)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := utils.GenerateRefreshToken(userID, s.cfg.RefreshExpire)
	if err != nil {
		return nil, err
	}

	// Compare-and-overwrite: the WHERE clause only matches while the stored
	// token is still the one presented. The first successful rotation wins.
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ? AND deleted_at IS NULL", userID, oldRefresh).
		Update("refresh_token", refresh)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.revocations.Revoke(ctx, oldRefresh, utils.RefreshTokenRemainingTTL(oldRefresh)); err != nil {
		return nil, err
	}
	if oldAccess != "" {
		if err := s.revocations.Revoke(ctx, oldAccess, utils.AccessTokenRemainingTTL(oldAccess)); err != nil {
			return nil, err
		}
	}

	s.log.Debug().Uint("user_id", userID).Msg("refresh token rotated")

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RevokeSession ends a user's session: the presented access token and the
// stored refresh token are blacklisted for their remaining lifetimes, and
// the stored refresh token is cleared.
func (s *TokenService) RevokeSession(ctx context.Context, userID uint, accessToken string) error {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("id", "refresh_token").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return err
	}

	if err := s.revocations.Revoke(ctx, accessToken, utils.AccessTokenRemainingTTL(accessToken)); err != nil {
		return err
	}
	if user.RefreshToken != "" {
		if err := s.revocations.Revoke(ctx, user.RefreshToken, utils.RefreshTokenRemainingTTL(user.RefreshToken)); err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", "").Error
}
