package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pactman/internal/metrics"
	"github.com/hitoshi/pactman/internal/middleware"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/signing"
)

// SigningServiceInterface は署名ハンドラーが必要とするサービスインターフェース。
type SigningServiceInterface interface {
	// LoadView はアクセストークンから署名画面の表示情報を組み立てる。
	// 初回アクセス時は閲覧記録も残す。
	LoadView(ctx context.Context, accessToken, ipAddress, userAgent string) (*signing.View, error)
	// Submit は署名を記録する。同一受信者の二重署名は拒否する。
	Submit(ctx context.Context, accessToken string, params signing.SubmitParams) (*signing.SubmitResult, error)
}

// SigningHandler は受信者向け署名セッションのHTTPハンドラー。
// 認証は持たず、URLのアクセストークンだけで受信者を識別する。
type SigningHandler struct {
	service   SigningServiceInterface
	collector metrics.MetricsCollector
}

// NewSigningHandler はSigningHandlerを生成する。
// collectorはnil可（テストや計測無効時）。
func NewSigningHandler(service SigningServiceInterface, collector metrics.MetricsCollector) *SigningHandler {
	return &SigningHandler{
		service:   service,
		collector: collector,
	}
}

// submitSignatureRequest は署名送信リクエストのボディ。
type submitSignatureRequest struct {
	Method string `json:"method"`
	Data   string `json:"data"`
}

// signingViewResponse は署名画面のAPIレスポンス。
type signingViewResponse struct {
	ContractID    string                  `json:"contract_id"`
	Title         string                  `json:"title"`
	Content       string                  `json:"content"`
	Status        string                  `json:"status"`
	ExpiresAt     *time.Time              `json:"expires_at,omitempty"`
	SenderName    string                  `json:"sender_name"`
	SenderCompany string                  `json:"sender_company,omitempty"`
	RecipientName string                  `json:"recipient_name"`
	Roster        []rosterEntryResponse   `json:"roster"`
	HasSigned     bool                    `json:"has_signed"`
}

// rosterEntryResponse は署名画面に表示する共同署名者1行のAPIレスポンス。
// アクセストークンは含めない。
type rosterEntryResponse struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Ordinal  int        `json:"ordinal"`
	Status   string     `json:"status"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// submitSignatureResponse は署名送信のAPIレスポンス。
type submitSignatureResponse struct {
	SignatureID string `json:"signature_id"`
	Completed   bool   `json:"completed"`
}

// GetSigningView は署名画面の表示情報取得を処理する。
// GET /sign/{token}
func (h *SigningHandler) GetSigningView(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	view, err := h.service.LoadView(r.Context(), token, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	roster := make([]rosterEntryResponse, len(view.Roster))
	for i, entry := range view.Roster {
		roster[i] = rosterEntryResponse{
			Name:     entry.Name,
			Email:    entry.Email,
			Ordinal:  entry.Ordinal,
			Status:   string(entry.Status),
			SignedAt: entry.SignedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(signingViewResponse{
		ContractID:    view.ContractID,
		Title:         view.Title,
		Content:       view.Content,
		Status:        string(view.Status),
		ExpiresAt:     view.ExpiresAt,
		SenderName:    view.SenderName,
		SenderCompany: view.SenderCompany,
		RecipientName: view.RecipientName,
		Roster:        roster,
		HasSigned:     view.HasSigned,
	})
}

// SubmitSignature は署名の送信を処理する。
// POST /sign/{token}
func (h *SigningHandler) SubmitSignature(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req submitSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "リクエスト形式を確認してください。",
		})
		return
	}

	start := time.Now()
	result, err := h.service.Submit(r.Context(), token, signing.SubmitParams{
		Method:    model.SignatureMethod(req.Method),
		Data:      req.Data,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordSignature(req.Method)
		h.collector.RecordSigningLatency(time.Since(start))
		if result.Completed {
			h.collector.RecordContractCompleted()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(submitSignatureResponse{
		SignatureID: result.SignatureID,
		Completed:   result.Completed,
	})
}

// SetupSigningRoutes は署名関連のルーティングを設定したchi.Routerを返す。
func SetupSigningRoutes(service SigningServiceInterface, collector metrics.MetricsCollector) http.Handler {
	r := chi.NewRouter()
	h := NewSigningHandler(service, collector)

	r.Route("/sign/{token}", func(r chi.Router) {
		r.Get("/", h.GetSigningView)
		r.Post("/", h.SubmitSignature)
	})

	return r
}
