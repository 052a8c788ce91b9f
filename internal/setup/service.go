// Package setup はアカウント有効化用セットアップトークンの発行・検証・消費を提供する。
// トークンはワンタイムかつ時限であり、消費または期限切れ検出でレコードごと削除される。
package setup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/classhub/internal/model"
	"github.com/hitoshi/classhub/internal/password"
	"github.com/hitoshi/classhub/internal/repository"
)

// tokenBytes はトークンの乱数長（バイト）。hex表現で64文字になる。
const tokenBytes = 32

// MinPasswordLength はアカウント有効化時に設定するパスワードの最小長。
const MinPasswordLength = 6

// ConsumeInput はトークン消費時の入力。
// プロフィール項目は任意で、空の場合は既存の値を維持する。
type ConsumeInput struct {
	Token     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// TokenMetrics はトークンの発行・消費件数の記録先。
type TokenMetrics interface {
	RecordSetupTokenIssued()
	RecordSetupTokenConsumed()
}

// Service はセットアップトークンのレジストリ。
type Service struct {
	tokens  repository.SetupTokenRepository
	hasher  *password.Hasher
	ttl     time.Duration
	metrics TokenMetrics
}

// NewService はServiceを生成する。ttlはトークンの有効期間（デフォルト7日）。
func NewService(tokens repository.SetupTokenRepository, hasher *password.Hasher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		tokens: tokens,
		hasher: hasher,
		ttl:    ttl,
	}
}

// SetMetrics は計測の記録先を設定する。未設定の場合は記録しない。
func (s *Service) SetMetrics(m TokenMetrics) {
	s.metrics = m
}

// Create は暗号学的乱数によるトークンを発行して保存し、トークン文字列を返す。
// 返されたトークンは有効化リンクに埋め込んで利用者に届ける。
func (s *Service) Create(ctx context.Context, accountID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("トークンの生成に失敗しました: %w", err)
	}

	now := time.Now()
	if err := s.tokens.Create(ctx, &model.SetupToken{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}

	slog.Info("セットアップトークンを発行しました",
		slog.String("account_id", accountID),
		slog.Time("expires_at", now.Add(s.ttl)),
	)
	if s.metrics != nil {
		s.metrics.RecordSetupTokenIssued()
	}

	return token, nil
}

// Validate はトークンを検証し、招待対象者の情報を返す。
// 未知のトークンはSETUP_TOKEN_NOT_FOUND、期限切れはSETUP_TOKEN_EXPIREDを返す。
// 期限切れを検出した場合はその場でレコードを削除するため、
// 同じトークンの次回アクセスはNOT_FOUNDになる。
func (s *Service) Validate(ctx context.Context, token string) (*model.Invitee, error) {
	st, invitee, err := s.tokens.FindWithInvitee(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("トークンの検索に失敗しました: %w", err)
	}
	if st == nil {
		return nil, model.NewSetupTokenNotFoundError()
	}

	if st.Expired(time.Now()) {
		if err := s.tokens.DeleteByToken(ctx, token); err != nil {
			return nil, fmt.Errorf("期限切れトークンの削除に失敗しました: %w", err)
		}
		slog.Info("期限切れのセットアップトークンを削除しました",
			slog.String("account_id", st.AccountID),
		)
		return nil, model.NewSetupTokenExpiredError()
	}

	return invitee, nil
}

// Consume はトークンを消費してパスワードとプロフィールを設定する。
// トークン検証・パスワード書き込み・プロフィール更新・トークン削除は
// リポジトリ側で単一トランザクションとして実行され、同一トークンへの
// 同時消費はちょうど1つだけが成功する。
func (s *Service) Consume(ctx context.Context, input ConsumeInput) error {
	if len(input.Password) < MinPasswordLength {
		return model.NewValidationError(
			fmt.Sprintf("パスワードは%d文字以上で指定してください", MinPasswordLength))
	}

	// ハッシュ計算は低速なためトランザクションの外で行う
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	err = s.tokens.Consume(ctx, input.Token, repository.ConsumeUpdate{
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSetupTokenNotFound):
			return model.NewSetupTokenNotFoundError()
		case errors.Is(err, repository.ErrSetupTokenExpired):
			return model.NewSetupTokenExpiredError()
		default:
			return fmt.Errorf("トークンの消費に失敗しました: %w", err)
		}
	}

	slog.Info("セットアップトークンを消費しアカウントを有効化しました")
	if s.metrics != nil {
		s.metrics.RecordSetupTokenConsumed()
	}
	return nil
}

// Invalidate は指定アカウントの既存トークンをすべて削除する。
// 有効化リンクの再送前に呼び出し、古いリンクを無効化する。
func (s *Service) Invalidate(ctx context.Context, accountID string) error {
	if err := s.tokens.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("既存トークンの削除に失敗しました: %w", err)
	}
	return nil
}

// generateToken は暗号学的乱数から衝突困難なトークン文字列を生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
