package security

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText はHTMLからタグを取り除いたプレーンテキストを返す。
// 契約書一覧の本文プレビューに使用する。maxLenが正の場合は
// ルーン単位で切り詰めて末尾に省略記号を付ける。
// script/style要素内のテキストは含めない。
func ExtractText(rawHTML string, maxLen int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// パース不能な入力はプレビューなしとして扱う
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := sb.String()
	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "…"
		}
	}
	return text
}
