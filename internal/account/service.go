package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/classhub/internal/model"
	"github.com/hitoshi/classhub/internal/repository"
)

// TokenIssuer はセットアップトークンの発行と無効化を行う。
type TokenIssuer interface {
	Create(ctx context.Context, accountID string) (string, error)
	Invalidate(ctx context.Context, accountID string) error
}

// ActivationMailer は招待メールを送信する。
type ActivationMailer interface {
	SendActivation(ctx context.Context, to, name, link string) error
}

// Service は教師・管理者によるアカウント発行を提供する。
// 発行されたアカウントはパスワード未設定の状態で作成され、
// セットアップトークン経由で本人が有効化するまでログインできない。
type Service struct {
	accounts repository.AccountRepository
	tokens   TokenIssuer
	mailer   ActivationMailer
	baseURL  string
}

// NewService は新しいServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	tokens TokenIssuer,
	mailer ActivationMailer,
	baseURL string,
) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		mailer:   mailer,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// ProvisionInput はアカウント発行の入力。
type ProvisionInput struct {
	Email     string
	Role      string
	FirstName string
	LastName  string
	Phone     string
}

// Provision はアカウントを作成し、セットアップトークンを発行して
// 有効化リンクをメールで送信する。
//
// メール送信の失敗はアカウント作成をロールバックしない。
// トークンは保存済みのため、再送で回復できる。
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (*model.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	role, ok := model.ParseRole(input.Role)
	if !ok {
		return nil, model.NewValidationError(
			fmt.Sprintf("ロールが不正です: %s", input.Role))
	}

	now := time.Now()
	account := &model.Account{
		ID:        uuid.New().String(),
		Email:     email,
		Role:      role,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if err == repository.ErrDuplicateEmail {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("アカウントの作成に失敗しました: %w", err)
	}

	if err := s.sendInvite(ctx, account); err != nil {
		return nil, err
	}

	slog.Info("アカウントを発行しました",
		"account_id", account.ID,
		"role", account.Role,
	)
	return account, nil
}

// Resend は既存トークンを無効化し、新しい有効化リンクを再送する。
func (s *Service) Resend(ctx context.Context, accountID string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return model.NewAccountNotFoundError(accountID)
	}

	if err := s.tokens.Invalidate(ctx, account.ID); err != nil {
		return err
	}
	return s.sendInvite(ctx, account)
}

func (s *Service) sendInvite(ctx context.Context, account *model.Account) error {
	token, err := s.tokens.Create(ctx, account.ID)
	if err != nil {
		return err
	}

	link := s.ActivationLink(token)
	if err := s.mailer.SendActivation(ctx, account.Email, account.FullName(), link); err != nil {
		// トークンは保存済みのため、失敗しても再送で回復できる
		slog.Error("招待メールの送信に失敗しました",
			"account_id", account.ID,
			"error", err,
		)
	}
	return nil
}

// ActivationLink はセットアップトークンから有効化URLを組み立てる。
func (s *Service) ActivationLink(token string) string {
	return fmt.Sprintf("%s/setup?token=%s", s.baseURL, token)
}
