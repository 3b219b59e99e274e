package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pactman/internal/contract"
	"github.com/hitoshi/pactman/internal/middleware"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/recipient"
)

// --- モック定義 ---

// mockContractService はContractServiceInterfaceのモック実装。
type mockContractService struct {
	createFn     func(ctx context.Context, userID string, params contract.CreateParams) (*contractResponse, error)
	listFn       func(ctx context.Context, userID string) ([]contractSummaryResponse, error)
	getFn        func(ctx context.Context, userID, contractID string) (*contractDetailResponse, error)
	updateFn     func(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error)
	cancelFn     func(ctx context.Context, userID, contractID string) error
	deleteFn     func(ctx context.Context, userID, contractID string) error
	sendFn       func(ctx context.Context, userID, contractID string, params recipient.SendParams) ([]recipientResponse, error)
	auditTrailFn func(ctx context.Context, userID, contractID string) ([]auditEntryResponse, error)
}

func (m *mockContractService) Create(ctx context.Context, userID string, params contract.CreateParams) (*contractResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, params)
	}
	return nil, nil
}

func (m *mockContractService) List(ctx context.Context, userID string) ([]contractSummaryResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockContractService) Get(ctx context.Context, userID, contractID string) (*contractDetailResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, contractID)
	}
	return nil, nil
}

func (m *mockContractService) Update(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, contractID, params)
	}
	return nil, nil
}

func (m *mockContractService) Cancel(ctx context.Context, userID, contractID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID, contractID)
	}
	return nil
}

func (m *mockContractService) Delete(ctx context.Context, userID, contractID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, contractID)
	}
	return nil
}

func (m *mockContractService) Send(ctx context.Context, userID, contractID string, params recipient.SendParams) ([]recipientResponse, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, userID, contractID, params)
	}
	return nil, nil
}

func (m *mockContractService) AuditTrail(ctx context.Context, userID, contractID string) ([]auditEntryResponse, error) {
	if m.auditTrailFn != nil {
		return m.auditTrailFn(ctx, userID, contractID)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- POST /api/contracts テスト ---

func TestContractHandler_CreateContract_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &mockContractService{
		createFn: func(ctx context.Context, userID string, params contract.CreateParams) (*contractResponse, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if params.Title != "業務委託契約書" {
				t.Errorf("title = %q, want %q", params.Title, "業務委託契約書")
			}
			if params.TemplateID != "freelance-agreement" {
				t.Errorf("template_id = %q, want %q", params.TemplateID, "freelance-agreement")
			}
			return &contractResponse{
				ID:        "contract-1",
				Title:     params.Title,
				Content:   params.Content,
				Status:    "draft",
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}

	h := NewContractHandler(svc)

	body := `{"title":"業務委託契約書","content":"<p>契約内容</p>","template_id":"freelance-agreement"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contracts", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateContract(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "contract-1" {
		t.Errorf("id = %v, want %q", result["id"], "contract-1")
	}
	if result["status"] != "draft" {
		t.Errorf("status = %v, want %q", result["status"], "draft")
	}
}

func TestContractHandler_CreateContract_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewContractHandler(&mockContractService{})

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	h.CreateContract(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %q, want %q", errResp["code"], "UNAUTHORIZED")
	}
}

func TestContractHandler_CreateContract_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewContractHandler(&mockContractService{})

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", bytes.NewBufferString(`{invalid`))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateContract(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestContractHandler_CreateContract_ValidationError_ReturnsBadRequest(t *testing.T) {
	svc := &mockContractService{
		createFn: func(ctx context.Context, userID string, params contract.CreateParams) (*contractResponse, error) {
			return nil, model.NewValidationError("タイトルは必須です。")
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", bytes.NewBufferString(`{"title":""}`))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateContract(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeValidation)
	}
}

// --- GET /api/contracts テスト ---

func TestContractHandler_ListContracts_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &mockContractService{
		listFn: func(ctx context.Context, userID string) ([]contractSummaryResponse, error) {
			return []contractSummaryResponse{
				{
					ID:             "contract-1",
					Title:          "秘密保持契約書",
					Status:         "pending",
					Excerpt:        "本契約は...",
					RecipientCount: 2,
					SignedCount:    1,
					CreatedAt:      now,
				},
			}, nil
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListContracts(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string][]map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	contracts := result["contracts"]
	if len(contracts) != 1 {
		t.Fatalf("contracts length = %d, want 1", len(contracts))
	}
	if contracts[0]["excerpt"] != "本契約は..." {
		t.Errorf("excerpt = %v, want %q", contracts[0]["excerpt"], "本契約は...")
	}
	if int(contracts[0]["signed_count"].(float64)) != 1 {
		t.Errorf("signed_count = %v, want 1", contracts[0]["signed_count"])
	}
}

func TestContractHandler_ListContracts_Empty(t *testing.T) {
	svc := &mockContractService{
		listFn: func(ctx context.Context, userID string) ([]contractSummaryResponse, error) {
			return []contractSummaryResponse{}, nil
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListContracts(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(result["contracts"]) != "[]" {
		t.Errorf("contracts = %s, want []", result["contracts"])
	}
}

// --- GET /api/contracts/{id} テスト ---

func TestContractHandler_GetContract_Success(t *testing.T) {
	svc := &mockContractService{
		getFn: func(ctx context.Context, userID, contractID string) (*contractDetailResponse, error) {
			if contractID != "contract-1" {
				t.Errorf("contractID = %q, want %q", contractID, "contract-1")
			}
			return &contractDetailResponse{
				contractResponse: contractResponse{
					ID:     "contract-1",
					Title:  "業務委託契約書",
					Status: "pending",
				},
				Recipients: []recipientResponse{
					{ID: "rec-1", Name: "山田太郎", Email: "yamada@example.com", Ordinal: 1, Status: "sent", AccessToken: "token-1"},
				},
				Signatures: []signatureResponse{},
				AuditTrail: []auditEntryResponse{
					{ID: "audit-1", Action: "sent", Details: json.RawMessage(`{"recipients":["yamada@example.com"]}`)},
				},
			}, nil
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contracts/contract-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.GetContract(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	recipients := result["recipients"].([]interface{})
	if len(recipients) != 1 {
		t.Fatalf("recipients length = %d, want 1", len(recipients))
	}
	rec := recipients[0].(map[string]interface{})
	if rec["access_token"] != "token-1" {
		t.Errorf("access_token = %v, want %q", rec["access_token"], "token-1")
	}
	trail := result["audit_trail"].([]interface{})
	if len(trail) != 1 {
		t.Fatalf("audit_trail length = %d, want 1", len(trail))
	}
}

func TestContractHandler_GetContract_NotFound(t *testing.T) {
	svc := &mockContractService{
		getFn: func(ctx context.Context, userID, contractID string) (*contractDetailResponse, error) {
			return nil, model.NewContractNotFoundError(contractID)
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contracts/missing", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.GetContract(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeContractNotFound {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeContractNotFound)
	}
}

// --- PATCH /api/contracts/{id} テスト ---

func TestContractHandler_UpdateContract_Success(t *testing.T) {
	svc := &mockContractService{
		updateFn: func(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error) {
			if params.Title == nil || *params.Title != "改訂版タイトル" {
				t.Errorf("title = %v, want 改訂版タイトル", params.Title)
			}
			if params.Content != nil {
				t.Errorf("content should be nil when omitted, got %v", *params.Content)
			}
			return &contractResponse{ID: contractID, Title: *params.Title, Status: "draft"}, nil
		},
	}
	h := NewContractHandler(svc)

	body := `{"title":"改訂版タイトル"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/contracts/contract-1", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.UpdateContract(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestContractHandler_UpdateContract_ClearExpiresAt(t *testing.T) {
	svc := &mockContractService{
		updateFn: func(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error) {
			if !params.ClearExpiresAt {
				t.Error("ClearExpiresAt should be true")
			}
			return &contractResponse{ID: contractID, Status: "draft"}, nil
		},
	}
	h := NewContractHandler(svc)

	body := `{"clear_expires_at":true}`
	req := httptest.NewRequest(http.MethodPatch, "/api/contracts/contract-1", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.UpdateContract(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestContractHandler_UpdateContract_NotEditable_ReturnsConflict(t *testing.T) {
	svc := &mockContractService{
		updateFn: func(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error) {
			return nil, model.NewInvalidStateError(model.ContractStatusPending, "編集")
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/contracts/contract-1", bytes.NewBufferString(`{"title":"x"}`))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.UpdateContract(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidState {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidState)
	}
}

// --- POST /api/contracts/{id}/cancel テスト ---

func TestContractHandler_CancelContract_Success(t *testing.T) {
	called := false
	svc := &mockContractService{
		cancelFn: func(ctx context.Context, userID, contractID string) error {
			called = true
			return nil
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contracts/contract-1/cancel", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.CancelContract(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !called {
		t.Error("Cancel was not called")
	}
}

func TestContractHandler_CancelContract_NotPending_ReturnsConflict(t *testing.T) {
	svc := &mockContractService{
		cancelFn: func(ctx context.Context, userID, contractID string) error {
			return model.NewInvalidStateError(model.ContractStatusCompleted, "取り消し")
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/contracts/contract-1/cancel", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.CancelContract(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// --- DELETE /api/contracts/{id} テスト ---

func TestContractHandler_DeleteContract_Success(t *testing.T) {
	svc := &mockContractService{
		deleteFn: func(ctx context.Context, userID, contractID string) error {
			if contractID != "contract-1" {
				t.Errorf("contractID = %q, want %q", contractID, "contract-1")
			}
			return nil
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/contracts/contract-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.DeleteContract(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

// --- POST /api/contracts/{id}/send テスト ---

func TestContractHandler_SendContract_Success(t *testing.T) {
	svc := &mockContractService{
		sendFn: func(ctx context.Context, userID, contractID string, params recipient.SendParams) ([]recipientResponse, error) {
			if len(params.Entries) != 2 {
				t.Fatalf("entries length = %d, want 2", len(params.Entries))
			}
			if params.Entries[0].Email != "yamada@example.com" {
				t.Errorf("email = %q, want %q", params.Entries[0].Email, "yamada@example.com")
			}
			if params.ExpiresInDays != 14 {
				t.Errorf("expires_in_days = %d, want 14", params.ExpiresInDays)
			}
			if params.Message != "ご確認ください" {
				t.Errorf("message = %q, want %q", params.Message, "ご確認ください")
			}
			return []recipientResponse{
				{ID: "rec-1", Name: "山田太郎", Email: "yamada@example.com", Ordinal: 1, Status: "sent", AccessToken: "token-1"},
				{ID: "rec-2", Name: "佐藤花子", Email: "sato@example.com", Ordinal: 2, Status: "sent", AccessToken: "token-2"},
			}, nil
		},
	}
	h := NewContractHandler(svc)

	body := `{
		"recipients": [
			{"name": "山田太郎", "email": "yamada@example.com"},
			{"name": "佐藤花子", "email": "sato@example.com"}
		],
		"message": "ご確認ください",
		"expires_in_days": 14
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/contracts/contract-1/send", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.SendContract(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var result map[string][]map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result["recipients"]) != 2 {
		t.Fatalf("recipients length = %d, want 2", len(result["recipients"]))
	}
	if result["recipients"][1]["ordinal"].(float64) != 2 {
		t.Errorf("ordinal = %v, want 2", result["recipients"][1]["ordinal"])
	}
}

func TestContractHandler_SendContract_NotDraft_ReturnsConflict(t *testing.T) {
	svc := &mockContractService{
		sendFn: func(ctx context.Context, userID, contractID string, params recipient.SendParams) ([]recipientResponse, error) {
			return nil, model.NewInvalidStateError(model.ContractStatusPending, "送信")
		},
	}
	h := NewContractHandler(svc)

	body := `{"recipients":[{"name":"山田太郎","email":"yamada@example.com"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/contracts/contract-1/send", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.SendContract(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// --- GET /api/contracts/{id}/audit テスト ---

func TestContractHandler_GetAuditTrail_Success(t *testing.T) {
	svc := &mockContractService{
		auditTrailFn: func(ctx context.Context, userID, contractID string) ([]auditEntryResponse, error) {
			return []auditEntryResponse{
				{ID: "audit-2", Action: "signed", Details: json.RawMessage(`{"recipient_email":"yamada@example.com","signature_type":"draw"}`)},
				{ID: "audit-1", Action: "created", Details: json.RawMessage(`{"title":"業務委託契約書"}`)},
			}, nil
		},
	}
	h := NewContractHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/contracts/contract-1/audit", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "contract-1")
	w := httptest.NewRecorder()

	h.GetAuditTrail(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string][]map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	entries := result["entries"]
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if entries[0]["action"] != "signed" {
		t.Errorf("action = %v, want %q", entries[0]["action"], "signed")
	}
	details := entries[0]["details"].(map[string]interface{})
	if details["signature_type"] != "draw" {
		t.Errorf("signature_type = %v, want %q", details["signature_type"], "draw")
	}
}

// --- エラーマッピングテスト ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"契約書が存在しない", model.NewContractNotFoundError("c-1"), http.StatusNotFound},
		{"受信者が存在しない", model.NewRecipientNotFoundError("r-1"), http.StatusNotFound},
		{"無効な署名リンク", model.NewInvalidLinkError(), http.StatusNotFound},
		{"テンプレートが存在しない", model.NewTemplateNotFoundError("t-1"), http.StatusNotFound},
		{"状態遷移違反", model.NewInvalidStateError(model.ContractStatusDraft, "取り消し"), http.StatusConflict},
		{"二重署名", model.NewAlreadySignedError(), http.StatusConflict},
		{"契約書クローズ済み", model.NewContractClosedError(model.ContractStatusExpired), http.StatusGone},
		{"バリデーションエラー", model.NewValidationError("入力が不正です。"), http.StatusBadRequest},
		{"未知のコード", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_NonAPIError_ReturnsInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("database connection lost"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", errResp["code"], "INTERNAL_ERROR")
	}

	// 統一エラーフォーマット（code, message, category, action）の4フィールドを検証
	requiredFields := []string{"code", "message", "category", "action"}
	for _, field := range requiredFields {
		if errResp[field] == "" {
			t.Errorf("expected non-empty %q field in error response", field)
		}
	}
}
