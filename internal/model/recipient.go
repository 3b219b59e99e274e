// Package model はドメインモデルを定義する。
package model

import "time"

// Recipient は契約書の署名に招待された受信者を表す。
// AccessTokenはログイン不要の署名リンクに使用される推測不能なトークンで、
// ユーザーのログインIDとは独立している。
type Recipient struct {
	ID          string
	ContractID  string
	Name        string
	Email       string
	Role        string
	Ordinal     int // 共同署名者の中での表示順（1始まり）
	Status      RecipientStatus
	AccessToken string
	ViewedAt    *time.Time
	SignedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecipientRoleSigner は署名者ロールのデフォルト値。
const RecipientRoleSigner = "signer"

// RecipientStatus は受信者の進行状態を表す。
// sent → viewed → signed の順にのみ前進し、後退しない。
type RecipientStatus string

const (
	// RecipientStatusSent は署名リンクを送付済みの状態。
	RecipientStatusSent RecipientStatus = "sent"
	// RecipientStatusViewed は受信者が契約書を閲覧した状態。
	RecipientStatusViewed RecipientStatus = "viewed"
	// RecipientStatusSigned は受信者が署名を完了した状態。
	RecipientStatusSigned RecipientStatus = "signed"
	// RecipientStatusDeclined は受信者が署名を辞退した状態。
	RecipientStatusDeclined RecipientStatus = "declined"
)

// HasSigned は署名済みかを返す。
func (r *Recipient) HasSigned() bool {
	return r.Status == RecipientStatusSigned
}
