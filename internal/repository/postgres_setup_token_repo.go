package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/classhub/internal/model"
)

// PostgresSetupTokenRepo はPostgreSQLを使用したセットアップトークンリポジトリ。
type PostgresSetupTokenRepo struct {
	db *sql.DB
}

// NewPostgresSetupTokenRepo はPostgresSetupTokenRepoを生成する。
func NewPostgresSetupTokenRepo(db *sql.DB) *PostgresSetupTokenRepo {
	return &PostgresSetupTokenRepo{db: db}
}

// Create はセットアップトークンを作成する。
func (r *PostgresSetupTokenRepo) Create(ctx context.Context, token *model.SetupToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO setup_tokens (token, account_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.Token, token.AccountID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert setup token: %w", err)
	}

	return nil
}

// FindWithInvitee はトークンとその所有アカウントの招待情報を取得する。
// 見つからない場合は(nil, nil, nil)を返す。期限判定は呼び出し側で行う。
func (r *PostgresSetupTokenRepo) FindWithInvitee(ctx context.Context, token string) (*model.SetupToken, *model.Invitee, error) {
	st := &model.SetupToken{}
	invitee := &model.Invitee{}

	err := r.db.QueryRowContext(ctx,
		`SELECT t.token, t.account_id, t.expires_at, t.created_at,
		        a.email, a.first_name, a.last_name
		 FROM setup_tokens t
		 JOIN accounts a ON a.id = t.account_id
		 WHERE t.token = $1`,
		token,
	).Scan(
		&st.Token, &st.AccountID, &st.ExpiresAt, &st.CreatedAt,
		&invitee.Email, &invitee.FirstName, &invitee.LastName,
	)

	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find setup token: %w", err)
	}

	invitee.AccountID = st.AccountID
	return st, invitee, nil
}

// DeleteByToken は指定トークンのレコードを削除する。
// レコードが存在しなくてもエラーにしない（冪等）。
func (r *PostgresSetupTokenRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM setup_tokens WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete setup token: %w", err)
	}

	return nil
}

// DeleteByAccountID は指定アカウントの全トークンを削除する。
func (r *PostgresSetupTokenRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM setup_tokens WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete setup tokens by account: %w", err)
	}

	return nil
}

// Consume はトークンの削除とアカウント更新を単一トランザクションで行う。
//
// DELETE ... RETURNING を起点とすることで、同一トークンへの同時消費は
// 行ロックにより直列化され、後続のトランザクションは削除済みの行を
// 観測してErrSetupTokenNotFoundになる。部分適用や二重適用は起こらない。
//
// 期限切れの場合はトークン削除のみを確定し（次回以降はNotFoundになる）、
// ErrSetupTokenExpiredを返す。アカウントは変更されない。
func (r *PostgresSetupTokenRepo) Consume(ctx context.Context, token string, update ConsumeUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID string
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx,
		`DELETE FROM setup_tokens WHERE token = $1 RETURNING account_id, expires_at`,
		token,
	).Scan(&accountID, &expiresAt)

	if err == sql.ErrNoRows {
		return ErrSetupTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume setup token: %w", err)
	}

	if time.Now().After(expiresAt) {
		// 期限切れトークンの削除だけは確定させる
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit expired token deletion: %w", err)
		}
		return ErrSetupTokenExpired
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts
		 SET password_hash = $1,
		     first_name = COALESCE(NULLIF($2, ''), first_name),
		     last_name  = COALESCE(NULLIF($3, ''), last_name),
		     phone      = COALESCE(NULLIF($4, ''), phone),
		     updated_at = now()
		 WHERE id = $5`,
		update.PasswordHash, update.FirstName, update.LastName, update.Phone,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteExpired は期限切れトークンを一括削除し、削除件数を返す。
func (r *PostgresSetupTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM setup_tokens WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired setup tokens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// compile-time interface check
var _ SetupTokenRepository = (*PostgresSetupTokenRepo)(nil)
