// Package password はパスワードの一方向ハッシュ化と照合を提供する。
// bcryptを使用し、固定コストで意図的に低速な計算を行うことで
// オフライン総当たり攻撃への耐性を確保する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost はbcryptのコストファクタ。
// 1回のハッシュ計算が数十ミリ秒程度になるよう固定する。
const hashCost = 10

// ErrMismatch はパスワードがダイジェストと一致しない場合のエラー。
var ErrMismatch = errors.New("パスワードがハッシュと一致しません")

// ErrMalformedHash は保存済みダイジェストがbcrypt形式でない場合のエラー。
// パスワード不一致とは異なる運用上の異常であり、呼び出し側は
// 認証失敗ではなく内部エラーとして扱う判断ができる。
var ErrMalformedHash = errors.New("ハッシュの形式が不正です")

// Hasher はパスワードのハッシュ化と照合を行う。
type Hasher struct {
	cost int
}

// NewHasher は固定コストのHasherを生成する。
func NewHasher() *Hasher {
	return &Hasher{cost: hashCost}
}

// Hash は平文パスワードからソルト付きダイジェストを生成する。
// ソルトは毎回新規に生成されるため、同一の平文でも呼び出しごとに
// 異なるダイジェストが得られる。
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("空のパスワードはハッシュ化できません")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	return string(digest), nil
}

// Compare は平文パスワードをダイジェストと照合する。
// 一致すればnil、不一致ならErrMismatch、ダイジェストがbcrypt形式で
// ない場合はErrMalformedHashを返す。
func (h *Hasher) Compare(plain, digest string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	// 不一致以外のエラーはダイジェスト側の異常（破損・旧形式データ等）
	return fmt.Errorf("%w: %v", ErrMalformedHash, err)
}
