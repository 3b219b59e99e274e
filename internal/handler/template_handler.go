package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pactman/internal/template"
)

// TemplateCatalogInterface はテンプレートハンドラーが必要とするカタログインターフェース。
type TemplateCatalogInterface interface {
	// List は全テンプレートを返す。
	List() []template.Template
	// ListByCategory はカテゴリでテンプレートを絞り込む。
	ListByCategory(category string) []template.Template
	// GetByID はIDでテンプレートを引く。
	GetByID(id string) (*template.Template, error)
}

// TemplateHandler は契約書テンプレートのHTTPハンドラー。
// カタログは組み込み定義のみなので読み取り専用。
type TemplateHandler struct {
	catalog TemplateCatalogInterface
}

// NewTemplateHandler はTemplateHandlerを生成する。
func NewTemplateHandler(catalog TemplateCatalogInterface) *TemplateHandler {
	return &TemplateHandler{catalog: catalog}
}

// templateListResponse はテンプレート一覧のAPIレスポンス。
type templateListResponse struct {
	Templates []template.Template `json:"templates"`
}

// ListTemplates はテンプレート一覧を処理する。categoryクエリで絞り込める。
// GET /api/templates
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var templates []template.Template
	if category != "" {
		templates = h.catalog.ListByCategory(category)
	} else {
		templates = h.catalog.List()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(templateListResponse{Templates: templates})
}

// GetTemplate はテンプレート詳細の取得を処理する。
// GET /api/templates/{id}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.catalog.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tmpl)
}

// SetupTemplateRoutes はテンプレート関連のルーティングを設定したchi.Routerを返す。
func SetupTemplateRoutes(catalog TemplateCatalogInterface) http.Handler {
	r := chi.NewRouter()
	h := NewTemplateHandler(catalog)

	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Get("/{id}", h.GetTemplate)
	})

	return r
}
