// Package model はドメインモデルを定義する。
package model

import "time"

// Contract は署名ライフサイクルの対象となる契約書を表す。
// Contentはサニタイズ済みのリッチテキストHTMLを保持する。
type Contract struct {
	ID          string
	UserID      string
	Title       string
	Content     string // サニタイズ済みHTML
	Status      ContractStatus
	TemplateID  string
	ExpiresAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContractStatus は契約書のライフサイクル状態を表す。
type ContractStatus string

const (
	// ContractStatusDraft は送信前の下書き状態。
	ContractStatusDraft ContractStatus = "draft"
	// ContractStatusPending は受信者の署名を待っている状態。
	ContractStatusPending ContractStatus = "pending"
	// ContractStatusCompleted は全受信者が署名を完了した状態。
	ContractStatusCompleted ContractStatus = "completed"
	// ContractStatusExpired は有効期限切れにより終了した状態。
	ContractStatusExpired ContractStatus = "expired"
	// ContractStatusCanceled はオーナーにより取り消された状態。
	ContractStatusCanceled ContractStatus = "canceled"
)

// IsValid はステータス値が定義済みのものかを返す。
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusPending, ContractStatusCompleted,
		ContractStatusExpired, ContractStatusCanceled:
		return true
	}
	return false
}

// IsClosed は受信者の操作を受け付けない終了状態（expired/canceled）かを返す。
func (s ContractStatus) IsClosed() bool {
	return s == ContractStatusExpired || s == ContractStatusCanceled
}

// CanTransition は状態遷移が許可されているかを返す。
// 遷移は前進のみ: draft→pending、pending→{completed, expired, canceled}。
// completed/expired/canceledは終端状態であり、いかなる遷移も許可しない。
func (s ContractStatus) CanTransition(to ContractStatus) bool {
	switch s {
	case ContractStatusDraft:
		return to == ContractStatusPending
	case ContractStatusPending:
		return to == ContractStatusCompleted ||
			to == ContractStatusExpired ||
			to == ContractStatusCanceled
	}
	return false
}

// IsEditable はオーナーによる編集が許可されている状態かを返す。
// 完了済み・期限切れ・取り消し済みの契約書は編集できない。
func (s ContractStatus) IsEditable() bool {
	return s == ContractStatusDraft || s == ContractStatusPending
}
