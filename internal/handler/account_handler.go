package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/classhub/internal/account"
	"github.com/hitoshi/classhub/internal/model"
)

// AccountServiceInterface はアカウント発行ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Provision(ctx context.Context, input account.ProvisionInput) (*model.Account, error)
	Resend(ctx context.Context, accountID string) error
}

// AccountHandler は講師・管理者によるアカウント発行のHTTPハンドラー。
// ロール検査はミドルウェアで行われる前提。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// Provision はアカウントを発行し、招待メールを送信する。
// POST /api/accounts
func (h *AccountHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Role      string `json:"role"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSON形式が不正です"))
		return
	}

	created, err := h.service.Provision(r.Context(), account.ProvisionInput{
		Email:     req.Email,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAccountResponse(created))
}

// ResendInvite は有効化リンクを無効化して再送する。
// POST /api/accounts/{id}/resend-invite
func (h *AccountHandler) ResendInvite(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("アカウントIDが指定されていません"))
		return
	}

	if err := h.service.Resend(r.Context(), accountID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "sent",
	})
}
