// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/classhub/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("メールアドレスが重複しています")

// ErrSetupTokenNotFound は未知の（または既に消費済みの）セットアップトークンを表す。
var ErrSetupTokenNotFound = errors.New("セットアップトークンが見つかりません")

// ErrSetupTokenExpired は期限切れのセットアップトークンを表す。
// このエラーを返す時点でレコードは削除済みであり、以降のアクセスは
// ErrSetupTokenNotFoundになる。
var ErrSetupTokenExpired = errors.New("セットアップトークンの有効期限が切れています")

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail は正規化済み（小文字）のメールアドレスでアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error
}

// ConsumeUpdate はセットアップトークン消費時にアカウントへ適用する更新内容。
// プロフィール項目は空文字列の場合、既存の値を維持する。
type ConsumeUpdate struct {
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
}

// SetupTokenRepository はセットアップトークンの永続化インターフェース。
type SetupTokenRepository interface {
	// Create はセットアップトークンを作成する。
	Create(ctx context.Context, token *model.SetupToken) error

	// FindWithInvitee はトークンとその所有アカウントの招待情報を取得する。
	// 見つからない場合は(nil, nil, nil)を返す。期限判定は呼び出し側で行う。
	FindWithInvitee(ctx context.Context, token string) (*model.SetupToken, *model.Invitee, error)

	// DeleteByToken は指定トークンのレコードを削除する。
	// レコードが存在しなくてもエラーにしない（冪等）。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByAccountID は指定アカウントの全トークンを削除する。
	// 再送時に古いリンクを無効化するために使用する。
	DeleteByAccountID(ctx context.Context, accountID string) error

	// Consume はトークンの削除とアカウント更新を単一トランザクションで行う。
	// トークンの行削除（DELETE ... RETURNING）を起点とするため、同一トークンへの
	// 同時消費は必ず一方だけが成功し、他方はErrSetupTokenNotFoundを観測する。
	// 期限切れの場合は削除を確定した上でErrSetupTokenExpiredを返す。
	Consume(ctx context.Context, token string, update ConsumeUpdate) error

	// DeleteExpired は期限切れトークンを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
