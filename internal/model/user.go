// Package model はドメインモデルを定義する。
package model

import "time"

// User は契約書を作成・送信するオーナーユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	Company   string // 署名ページで送信者情報として表示される
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
