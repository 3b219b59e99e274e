package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pactman/internal/contract"
	"github.com/hitoshi/pactman/internal/middleware"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/recipient"
)

// ContractServiceInterface は契約書ハンドラーが必要とするサービスインターフェース。
type ContractServiceInterface interface {
	// Create は新しい契約書をdraft状態で作成する。
	Create(ctx context.Context, userID string, params contract.CreateParams) (*contractResponse, error)
	// List はユーザーの契約書一覧を返す。
	List(ctx context.Context, userID string) ([]contractSummaryResponse, error)
	// Get は契約書の詳細（受信者・署名・監査ログ込み）を返す。
	Get(ctx context.Context, userID, contractID string) (*contractDetailResponse, error)
	// Update はdraft状態の契約書を部分更新する。
	Update(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error)
	// Cancel はpending状態の契約書を取り消す。
	Cancel(ctx context.Context, userID, contractID string) error
	// Delete は契約書と関連データを削除する。
	Delete(ctx context.Context, userID, contractID string) error
	// Send は受信者を登録し契約書をpendingへ遷移させる。
	Send(ctx context.Context, userID, contractID string, params recipient.SendParams) ([]recipientResponse, error)
	// AuditTrail は契約書の監査ログを作成日時降順で返す。
	AuditTrail(ctx context.Context, userID, contractID string) ([]auditEntryResponse, error)
}

// ContractHandler は契約書管理のHTTPハンドラー。
type ContractHandler struct {
	service ContractServiceInterface
}

// NewContractHandler はContractHandlerを生成する。
func NewContractHandler(service ContractServiceInterface) *ContractHandler {
	return &ContractHandler{service: service}
}

// createContractRequest は契約書作成リクエストのボディ。
type createContractRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	TemplateID string `json:"template_id,omitempty"`
}

// updateContractRequest は契約書更新リクエストのボディ。
// 省略されたフィールドは変更しない。有効期限の削除はclear_expires_atで明示する。
type updateContractRequest struct {
	Title          *string    `json:"title,omitempty"`
	Content        *string    `json:"content,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiresAt bool       `json:"clear_expires_at,omitempty"`
}

// sendContractRequest は契約書送信リクエストのボディ。
type sendContractRequest struct {
	Recipients    []recipientEntryRequest `json:"recipients"`
	Message       string                  `json:"message,omitempty"`
	ExpiresInDays int                     `json:"expires_in_days,omitempty"`
}

// recipientEntryRequest は送信先1件の入力。
type recipientEntryRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// contractResponse は契約書単体のAPIレスポンス。
type contractResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	TemplateID  string     `json:"template_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// contractSummaryResponse は契約書一覧の1行のAPIレスポンス。
// 本文はプレーンテキストの抜粋に変換済み。
type contractSummaryResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	Excerpt        string     `json:"excerpt"`
	RecipientCount int        `json:"recipient_count"`
	SignedCount    int        `json:"signed_count"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// contractDetailResponse は契約書詳細のAPIレスポンス。
type contractDetailResponse struct {
	contractResponse
	Recipients []recipientResponse  `json:"recipients"`
	Signatures []signatureResponse  `json:"signatures"`
	AuditTrail []auditEntryResponse `json:"audit_trail"`
}

// recipientResponse は受信者のAPIレスポンス。
// アクセストークンは契約書オーナー向けの署名リンク生成にのみ使われる。
type recipientResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Ordinal     int        `json:"ordinal"`
	Status      string     `json:"status"`
	AccessToken string     `json:"access_token"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
}

// signatureResponse は署名レコードのAPIレスポンス。
type signatureResponse struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Method      string    `json:"method"`
	Data        string    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// auditEntryResponse は監査ログエントリのAPIレスポンス。
type auditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	UserID    string          `json:"user_id,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateContract は契約書作成を処理する。
// POST /api/contracts
func (h *ContractHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	resp, err := h.service.Create(r.Context(), userID, contract.CreateParams{
		Title:      req.Title,
		Content:    req.Content,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// ListContracts は契約書一覧を処理する。
// GET /api/contracts
func (h *ContractHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	summaries, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contractListResponse{Contracts: summaries})
}

// contractListResponse は契約書一覧のAPIレスポンス。
type contractListResponse struct {
	Contracts []contractSummaryResponse `json:"contracts"`
}

// GetContract は契約書詳細の取得を処理する。
// GET /api/contracts/{id}
func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	contractID := chi.URLParam(r, "id")
	detail, err := h.service.Get(r.Context(), userID, contractID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// UpdateContract は契約書の部分更新を処理する。
// PATCH /api/contracts/{id}
func (h *ContractHandler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	var req updateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	contractID := chi.URLParam(r, "id")
	resp, err := h.service.Update(r.Context(), userID, contractID, contract.UpdateParams{
		Title:          req.Title,
		Content:        req.Content,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CancelContract は契約書の取り消しを処理する。
// POST /api/contracts/{id}/cancel
func (h *ContractHandler) CancelContract(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	contractID := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), userID, contractID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteContract は契約書の削除を処理する。
// DELETE /api/contracts/{id}
func (h *ContractHandler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	contractID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, contractID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SendContract は契約書の送信（受信者登録）を処理する。
// POST /api/contracts/{id}/send
func (h *ContractHandler) SendContract(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	var req sendContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	entries := make([]recipient.Entry, len(req.Recipients))
	for i, rec := range req.Recipients {
		entries[i] = recipient.Entry{Name: rec.Name, Email: rec.Email}
	}

	contractID := chi.URLParam(r, "id")
	recipients, err := h.service.Send(r.Context(), userID, contractID, recipient.SendParams{
		Entries:       entries,
		Message:       req.Message,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sendContractResponse{Recipients: recipients})
}

// sendContractResponse は契約書送信のAPIレスポンス。
type sendContractResponse struct {
	Recipients []recipientResponse `json:"recipients"`
}

// GetAuditTrail は監査ログの取得を処理する。
// GET /api/contracts/{id}/audit
func (h *ContractHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証が必要です。",
			Category: "auth",
			Action:   "ログインしてください。",
		})
		return
	}

	contractID := chi.URLParam(r, "id")
	entries, err := h.service.AuditTrail(r.Context(), userID, contractID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(auditTrailResponse{Entries: entries})
}

// auditTrailResponse は監査ログ一覧のAPIレスポンス。
type auditTrailResponse struct {
	Entries []auditEntryResponse `json:"entries"`
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeContractNotFound,
		model.ErrCodeRecipientNotFound,
		model.ErrCodeTemplateNotFound,
		model.ErrCodeUserNotFound,
		model.ErrCodeInvalidLink:
		return http.StatusNotFound
	case model.ErrCodeInvalidState, model.ErrCodeAlreadySigned:
		return http.StatusConflict
	case model.ErrCodeContractClosed:
		return http.StatusGone
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}
