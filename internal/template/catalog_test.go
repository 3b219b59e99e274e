package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/pactman/internal/model"
)

// TestCatalog_List は組み込みテンプレートの一覧を検証する。
func TestCatalog_List(t *testing.T) {
	catalog := NewCatalog()

	templates := catalog.List()
	if len(templates) == 0 {
		t.Fatal("expected built-in templates")
	}

	seen := make(map[string]bool)
	for _, tmpl := range templates {
		if tmpl.ID == "" || tmpl.Name == "" || tmpl.Content == "" {
			t.Errorf("template %q has empty required field", tmpl.ID)
		}
		if seen[tmpl.ID] {
			t.Errorf("duplicate template id %q", tmpl.ID)
		}
		seen[tmpl.ID] = true
	}
	if !seen["freelance-agreement"] || !seen["nda-mutual"] {
		t.Error("expected freelance-agreement and nda-mutual to be built in")
	}
}

// TestCatalog_GetByID はID検索と未知IDのエラーを検証する。
func TestCatalog_GetByID(t *testing.T) {
	catalog := NewCatalog()

	tmpl, err := catalog.GetByID("nda-mutual")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if tmpl.Category != "nda" {
		t.Errorf("Category = %q, want %q", tmpl.Category, "nda")
	}

	_, err = catalog.GetByID("no-such-template")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTemplateNotFound {
		t.Errorf("expected TEMPLATE_NOT_FOUND, got %v", err)
	}
}

// TestCatalog_ListByCategory はカテゴリ絞り込みを検証する。
func TestCatalog_ListByCategory(t *testing.T) {
	catalog := NewCatalog()

	ndas := catalog.ListByCategory("nda")
	if len(ndas) != 1 || ndas[0].ID != "nda-mutual" {
		t.Errorf("ListByCategory(nda) = %v", ndas)
	}
	if got := catalog.ListByCategory("no-such-category"); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

// TestTemplate_Render は変数置換を検証する。
func TestTemplate_Render(t *testing.T) {
	tmpl := &Template{
		Content: "<p>{{party_a}} と {{party_b}} は {{party_a}} の責任で合意する。</p>",
	}

	rendered := tmpl.Render(map[string]string{
		"party_a": "株式会社アルファ",
		"party_b": "株式会社ベータ",
	})
	want := "<p>株式会社アルファ と 株式会社ベータ は 株式会社アルファ の責任で合意する。</p>"
	if rendered != want {
		t.Errorf("Render = %q, want %q", rendered, want)
	}
}

// TestTemplate_Render_EmptyValue は空値がプレースホルダー表示になることを検証する。
func TestTemplate_Render_EmptyValue(t *testing.T) {
	tmpl := &Template{Content: "<p>{{party_a}}</p>"}

	rendered := tmpl.Render(map[string]string{"party_a": ""})
	if rendered != "<p>[party_a]</p>" {
		t.Errorf("Render = %q, want %q", rendered, "<p>[party_a]</p>")
	}
}

// TestTemplate_Render_MissingKey は値が渡されない変数が置換されず残ることを検証する。
func TestTemplate_Render_MissingKey(t *testing.T) {
	tmpl := &Template{Content: "<p>{{party_a}} / {{party_b}}</p>"}

	rendered := tmpl.Render(map[string]string{"party_a": "Alpha"})
	if !strings.Contains(rendered, "{{party_b}}") {
		t.Errorf("Render = %q, want unreplaced {{party_b}}", rendered)
	}
}

// TestBuiltinTemplates_DeclaredVariablesAppear は宣言された変数が本文に現れることを検証する。
func TestBuiltinTemplates_DeclaredVariablesAppear(t *testing.T) {
	for _, tmpl := range NewCatalog().List() {
		for _, v := range tmpl.Variables {
			if !strings.Contains(tmpl.Content, "{{"+v.Name+"}}") {
				t.Errorf("template %q: variable %q not used in content", tmpl.ID, v.Name)
			}
		}
	}
}
