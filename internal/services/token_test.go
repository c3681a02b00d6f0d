package services

import (
	"context"
	"errors"
	"testing"

	"chatserver/internal/config"
	"chatserver/internal/models"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "test-access-secret",
		AccessExpire:  "15m",
		RefreshSecret: "test-refresh-secret",
		RefreshExpire: "7d",
	}
}

func TestTokenService_IssuePair(t *testing.T) {
	db := newTestDB(t)
	_, rdb := newTestRedis(t)
	tokens := NewTokenService(db, NewRevocationStore(rdb), testJWTConfig())
	user := createTestUser(t, db, "alice", "alice@example.com")
	ctx := context.Background()

	pair, err := tokens.IssuePair(ctx, user.ID)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("IssuePair() returned empty tokens")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens should differ")
	}

	claims, err := tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("UserID = %d, expected %d", claims.UserID, user.ID)
	}

	// The refresh token becomes the user's stored session.
	var stored models.User
	db.First(&stored, user.ID)
	if stored.RefreshToken != pair.RefreshToken {
		t.Error("refresh token not stored on the user row")
	}
}

func TestTokenService_Rotate(t *testing.T) {
	db := newTestDB(t)
	_, rdb := newTestRedis(t)
	revocations := NewRevocationStore(rdb)
	tokens := NewTokenService(db, revocations, testJWTConfig())
	user := createTestUser(t, db, "alice", "alice@example.com")
	ctx := context.Background()

	old, err := tokens.IssuePair(ctx, user.ID)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	fresh, err := tokens.Rotate(ctx, old.RefreshToken, old.AccessToken)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if fresh.RefreshToken == old.RefreshToken {
		t.Error("rotation should produce a new refresh token")
	}

	// Both old tokens are unusable for the rest of their lifetimes.
	for name, token := range map[string]string{
		"old refresh": old.RefreshToken,
		"old access":  old.AccessToken,
	} {
		revoked, err := revocations.IsRevoked(ctx, token)
		if err != nil {
			t.Fatalf("IsRevoked() error = %v", err)
		}
		if !revoked {
			t.Errorf("%s token should be revoked after rotation", name)
		}
	}

	// The fresh pair must remain usable even when the rotation happened in
	// the same second the old pair was issued.
	for name, token := range map[string]string{
		"fresh refresh": fresh.RefreshToken,
		"fresh access":  fresh.AccessToken,
	} {
		revoked, err := revocations.IsRevoked(ctx, token)
		if err != nil {
			t.Fatalf("IsRevoked() error = %v", err)
		}
		if revoked {
			t.Errorf("%s token must not be revoked after rotation", name)
		}
	}
}

func TestTokenService_RotateStaleTokenFails(t *testing.T) {
	db := newTestDB(t)
	_, rdb := newTestRedis(t)
	tokens := NewTokenService(db, NewRevocationStore(rdb), testJWTConfig())
	user := createTestUser(t, db, "alice", "alice@example.com")
	ctx := context.Background()

	old, _ := tokens.IssuePair(ctx, user.ID)

	if _, err := tokens.Rotate(ctx, old.RefreshToken, ""); err != nil {
		t.Fatalf("first Rotate() error = %v", err)
	}

	// The same token presented again loses: the stored token moved on.
	_, err := tokens.Rotate(ctx, old.RefreshToken, "")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("second Rotate() error = %v, expected ErrInvalidRefreshToken", err)
	}
}

func TestTokenService_RotateGarbageToken(t *testing.T) {
	db := newTestDB(t)
	_, rdb := newTestRedis(t)
	tokens := NewTokenService(db, NewRevocationStore(rdb), testJWTConfig())

	_, err := tokens.Rotate(context.Background(), "not-a-token", "")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("Rotate() error = %v, expected ErrInvalidRefreshToken", err)
	}
}

func TestTokenService_RevokeSession(t *testing.T) {
	db := newTestDB(t)
	_, rdb := newTestRedis(t)
	revocations := NewRevocationStore(rdb)
	tokens := NewTokenService(db, revocations, testJWTConfig())
	user := createTestUser(t, db, "alice", "alice@example.com")
	ctx := context.Background()

	pair, _ := tokens.IssuePair(ctx, user.ID)

	if err := tokens.RevokeSession(ctx, user.ID, pair.AccessToken); err != nil {
		t.Fatalf("RevokeSession() error = %v", err)
	}

	for name, token := range map[string]string{
		"access":  pair.AccessToken,
		"refresh": pair.RefreshToken,
	} {
		revoked, _ := revocations.IsRevoked(ctx, token)
		if !revoked {
			t.Errorf("%s token should be revoked after logout", name)
		}
	}

	var stored models.User
	db.First(&stored, user.ID)
	if stored.RefreshToken != "" {
		t.Error("stored refresh token should be cleared on logout")
	}

	// The cleared session cannot be rotated.
	if _, err := tokens.Rotate(ctx, pair.RefreshToken, ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("Rotate() after logout error = %v, expected ErrInvalidRefreshToken", err)
	}
}
