package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は契約書本文HTMLのサニタイズ機能のインターフェースを定義する。
// 契約書の作成・編集時に保存前のコンテンツに適用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 契約書テンプレートが使用する見出し・段落・リスト・表・強調タグのみを
	// 通過させ、script、iframe、styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: h1〜h3, p, br, hr, ul, ol, li, blockquote, strong, em, u,
//     table, thead, tbody, tr, th, td, div, span
//   - style属性はテンプレートの整列指定（text-align等）に使われるため
//     ブロック要素にのみ許可する
//   - script, iframe, style要素およびon*イベント属性は許可リスト外のため除去される
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "p", "br", "hr",
		"ul", "ol", "li", "blockquote",
		"strong", "em", "u",
		"table", "thead", "tbody", "tr", "th", "td",
		"div", "span",
	)

	// テンプレート本文はtext-align等のインライン指定を持つ
	p.AllowAttrs("style").OnElements("h1", "h2", "h3", "p", "div", "span", "td", "th")

	// 変数プレースホルダーの強調表示用
	p.AllowAttrs("class").OnElements("span")

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
