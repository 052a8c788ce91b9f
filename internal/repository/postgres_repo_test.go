package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/classhub/internal/model"
)

// PostgresAccountRepoはAccountRepositoryインターフェースを満たすことを検証
func TestPostgresAccountRepo_ImplementsInterface(t *testing.T) {
	var _ AccountRepository = (*PostgresAccountRepo)(nil)
}

// PostgresSetupTokenRepoはSetupTokenRepositoryインターフェースを満たすことを検証
func TestPostgresSetupTokenRepo_ImplementsInterface(t *testing.T) {
	var _ SetupTokenRepository = (*PostgresSetupTokenRepo)(nil)
}

// NewPostgresAccountRepoが正しく初期化されることを検証
func TestNewPostgresAccountRepo_Initializes(t *testing.T) {
	repo := NewPostgresAccountRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresSetupTokenRepoが正しく初期化されることを検証
func TestNewPostgresSetupTokenRepo_Initializes(t *testing.T) {
	repo := NewPostgresSetupTokenRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 期限判定はモデル側のヘルパーで行われることを検証（DB接続なし）
func TestSetupToken_ExpiryBoundary(t *testing.T) {
	now := time.Now()
	token := &model.SetupToken{
		Token:     "tok-1",
		AccountID: "acct-1",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
	}

	if token.Expired(now) {
		t.Error("token should not be expired immediately after creation")
	}
	if token.Expired(token.ExpiresAt) {
		t.Error("token should not be expired exactly at expires_at")
	}
	if !token.Expired(token.ExpiresAt.Add(time.Second)) {
		t.Error("token should be expired after expires_at")
	}
}
