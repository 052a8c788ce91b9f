// Package auth は資格情報の検証とセッショントークンの発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/classhub/internal/model"
	"github.com/hitoshi/classhub/internal/password"
	"github.com/hitoshi/classhub/internal/repository"
	"github.com/hitoshi/classhub/internal/session"
)

// MetricsRecorder はログイン結果のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	hasher   *password.Hasher
	metrics  MetricsRecorder
	config   ServiceConfig
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	accounts repository.AccountRepository,
	hasher *password.Hasher,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		metrics:  metrics,
		config:   config,
	}
}

// LoginInput はログインの入力。Roleは任意。
type LoginInput struct {
	Email    string
	Password string
	Role     string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token   string
	Account *model.Account
}

// Login は資格情報を検証し、署名付きセッショントークンを発行する。
//
// メールアドレス不明・パスワード不一致・保存済みダイジェスト破損は
// すべて同一のINVALID_CREDENTIALSとして返す（アカウント列挙の防止）。
// ダイジェスト破損は運用上の異常としてログにのみ記録する。
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードを入力してください")
	}

	var requestedRole model.Role
	if input.Role != "" {
		role, ok := model.ParseRole(input.Role)
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("未定義のロールです: %s", input.Role))
		}
		requestedRole = role
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("アカウントの検索に失敗しました: %w", err)
	}
	if account == nil {
		s.recordFailure()
		return nil, model.NewInvalidCredentialsError()
	}

	if err := s.hasher.Compare(input.Password, account.PasswordHash); err != nil {
		s.recordFailure()
		if errors.Is(err, password.ErrMalformedHash) {
			// データ破損・未有効化アカウント等。詳細は開示しない。
			slog.Error("保存済みパスワードハッシュの形式が不正です",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, model.NewInvalidCredentialsError()
	}

	if requestedRole != "" && account.Role != requestedRole {
		s.recordFailure()
		return nil, model.NewRoleMismatchError()
	}

	token, err := session.Issue(account, []byte(s.config.JWTSecret), s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("セッショントークンの発行に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}
	slog.Info("ログインに成功しました",
		slog.String("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)

	return &LoginResult{Token: token, Account: account}, nil
}

// RegisterInput は受講者セルフサインアップの入力。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register は受講者アカウントをセルフサービスで作成し、
// 作成直後のセッショントークンを発行する。ロールは常にSTUDENT。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*LoginResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if len(input.Password) < MinPasswordLength {
		return nil, model.NewValidationError(
			fmt.Sprintf("パスワードは%d文字以上で指定してください", MinPasswordLength))
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("アカウントの作成に失敗しました: %w", err)
	}

	token, err := session.Issue(account, []byte(s.config.JWTSecret), s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("セッショントークンの発行に失敗しました: %w", err)
	}

	slog.Info("受講者アカウントを登録しました",
		slog.String("account_id", account.ID),
	)

	return &LoginResult{Token: token, Account: account}, nil
}

// CurrentUser は認証済みアカウントIDからプロフィールを取得する。
func (s *Service) CurrentUser(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(accountID)
	}
	return account, nil
}

func (s *Service) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
}

// MinPasswordLength はパスワードの最小長。
const MinPasswordLength = 6

// NormalizeEmail はメールアドレスを保存形式（前後空白除去・小文字）に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
