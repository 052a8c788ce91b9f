package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/classhub/internal/model"
	"github.com/hitoshi/classhub/internal/setup"
)

// SetupServiceInterface はセットアップハンドラーが必要とするサービスインターフェース。
type SetupServiceInterface interface {
	Validate(ctx context.Context, token string) (*model.Invitee, error)
	Consume(ctx context.Context, input setup.ConsumeInput) error
}

// SetupHandler はアカウント有効化関連のHTTPハンドラー。
// 有効化リンクは本人のメールにのみ届くワンタイムURLのため、認証なしで受け付ける。
type SetupHandler struct {
	service SetupServiceInterface
}

// NewSetupHandler はSetupHandlerを生成する。
func NewSetupHandler(service SetupServiceInterface) *SetupHandler {
	return &SetupHandler{service: service}
}

// Validate はセットアップトークンの有効性を検査し、招待対象者の情報を返す。
// フロントエンドがパスワード設定フォームに氏名をプリフィルするために使う。
// GET /setup/validate?token=xxx
func (h *SetupHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("トークンが指定されていません"))
		return
	}

	invitee, err := h.service.Validate(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"email":      invitee.Email,
		"first_name": invitee.FirstName,
		"last_name":  invitee.LastName,
	})
}

// Consume はトークンを消費してパスワードを設定し、アカウントを有効化する。
// POST /setup
func (h *SetupHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token     string `json:"token"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSON形式が不正です"))
		return
	}

	if req.Token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("トークンが指定されていません"))
		return
	}

	err := h.service.Consume(r.Context(), setup.ConsumeInput{
		Token:     req.Token,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "activated",
	})
}
