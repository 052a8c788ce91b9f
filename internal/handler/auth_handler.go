// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/classhub/internal/auth"
	"github.com/hitoshi/classhub/internal/middleware"
	"github.com/hitoshi/classhub/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, input auth.LoginInput) (*auth.LoginResult, error)
	Register(ctx context.Context, input auth.RegisterInput) (*auth.LoginResult, error)
	CurrentUser(ctx context.Context, accountID string) (*model.Account, error)
}

// AuthHandler はログイン・登録関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// accountResponse はアカウント情報のJSONレスポンス。
// パスワードハッシュは含めない。
type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

func toAccountResponse(account *model.Account) accountResponse {
	return accountResponse{
		ID:        account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Phone:     account.Phone,
	}
}

// sessionResponse はログイン・登録成功時のJSONレスポンス。
type sessionResponse struct {
	Token   string          `json:"token"`
	Account accountResponse `json:"account"`
}

// Login は資格情報を検証してセッショントークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSON形式が不正です"))
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{
		Token:   result.Token,
		Account: toAccountResponse(result.Account),
	})
}

// Register は生徒アカウントのセルフ登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSON形式が不正です"))
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sessionResponse{
		Token:   result.Token,
		Account: toAccountResponse(result.Account),
	})
}

// Me は現在のログインアカウント情報を返す。
// GET /auth/me（認証ミドルウェアの内側）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	account, err := h.service.CurrentUser(r.Context(), claims.AccountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(account))
}
