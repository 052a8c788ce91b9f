// Package session は署名付きセッショントークンの発行と検証を提供する。
// トークンはHMAC-SHA256で署名され、サーバー側に状態を持たずに
// リクエストごとに署名から本人性を復元する。
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/classhub/internal/model"
)

// ErrTokenExpired は形式は正しいが有効期限を過ぎたトークンのエラー。
var ErrTokenExpired = errors.New("トークンの有効期限が切れています")

// ErrTokenInvalid は署名不正・改ざん・形式不正なトークンのエラー。
var ErrTokenInvalid = errors.New("トークンが不正です")

// Claims はセッショントークンに埋め込む本人性情報。
// ロールは発行時点のスナップショットであり、リクエストごとに
// 保存済みロールと突き合わせることはしない。
type Claims struct {
	jwt.RegisteredClaims
	AccountID string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
}

// Issue はアカウント情報からHS256署名付きトークンを発行する。
// secretは呼び出しごとに渡され、内部にキャッシュしない
// （シークレットローテーション時に古い鍵が残らないようにする）。
func Issue(account *model.Account, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}

	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、Claimsを返す。
// 期限切れはErrTokenExpired、それ以外の検証失敗はErrTokenInvalidを返す。
// (token, secret, 現在時刻)のみに依存する純粋な検証でありI/Oを行わない。
func Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: 未定義のロールです", ErrTokenInvalid)
	}

	return claims, nil
}
