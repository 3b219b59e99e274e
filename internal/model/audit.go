// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditLogEntry は契約書に対する状態変更イベントの監査記録を表す。
// 追記専用であり、個別の更新・削除は行わない。表示順はCreatedAtから導出する。
// UserIDは操作したオーナーのID。受信者による匿名操作（閲覧・署名）では空になる。
type AuditLogEntry struct {
	ID         string
	ContractID string
	UserID     string
	Action     AuditAction
	Details    AuditDetails
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// AuditAction は監査イベントの種別を表す。
type AuditAction string

const (
	// AuditActionCreated は契約書の作成。
	AuditActionCreated AuditAction = "created"
	// AuditActionSent は受信者への送信（draft→pending遷移）。
	AuditActionSent AuditAction = "sent"
	// AuditActionViewed は受信者による初回閲覧。
	AuditActionViewed AuditAction = "viewed"
	// AuditActionSigned は受信者による署名。
	AuditActionSigned AuditAction = "signed"
	// AuditActionCompleted は全受信者の署名完了（pending→completed遷移）。
	AuditActionCompleted AuditAction = "completed"
	// AuditActionEdited はオーナーによるフィールド編集。
	AuditActionEdited AuditAction = "edited"
	// AuditActionCanceled はオーナーによる取り消し。
	AuditActionCanceled AuditAction = "canceled"
	// AuditActionExpired は有効期限切れによる終了。
	AuditActionExpired AuditAction = "expired"
)

// AuditDetails は監査エントリの詳細ペイロード。
// アクション種別ごとに構造化された型を持つタグ付きバリアントとして表現し、
// 型のない属性バッグにしない。
type AuditDetails interface {
	// AuditAction はこの詳細が属するアクション種別を返す。
	AuditAction() AuditAction
}

// CreatedDetails は契約書作成イベントの詳細。
type CreatedDetails struct {
	TemplateID string `json:"template_id,omitempty"`
}

// AuditAction はcreatedを返す。
func (CreatedDetails) AuditAction() AuditAction { return AuditActionCreated }

// SentDetails は送信イベントの詳細。
type SentDetails struct {
	RecipientEmails []string `json:"recipients"`
	Message         string   `json:"message,omitempty"`
}

// AuditAction はsentを返す。
func (SentDetails) AuditAction() AuditAction { return AuditActionSent }

// ViewedDetails は閲覧イベントの詳細。
type ViewedDetails struct {
	RecipientEmail string `json:"recipient_email"`
}

// AuditAction はviewedを返す。
func (ViewedDetails) AuditAction() AuditAction { return AuditActionViewed }

// SignedDetails は署名イベントの詳細。
type SignedDetails struct {
	RecipientEmail string          `json:"recipient_email"`
	Method         SignatureMethod `json:"signature_type"`
}

// AuditAction はsignedを返す。
func (SignedDetails) AuditAction() AuditAction { return AuditActionSigned }

// CompletedDetails は完了イベントの詳細。
type CompletedDetails struct {
	RecipientCount int `json:"recipient_count"`
}

// AuditAction はcompletedを返す。
func (CompletedDetails) AuditAction() AuditAction { return AuditActionCompleted }

// EditedDetails は編集イベントの詳細。変更されたフィールド名を列挙する。
type EditedDetails struct {
	Fields []string `json:"fields"`
}

// AuditAction はeditedを返す。
func (EditedDetails) AuditAction() AuditAction { return AuditActionEdited }

// CanceledDetails は取り消しイベントの詳細。
type CanceledDetails struct {
	Reason string `json:"reason,omitempty"`
}

// AuditAction はcanceledを返す。
func (CanceledDetails) AuditAction() AuditAction { return AuditActionCanceled }

// ExpiredDetails は期限切れイベントの詳細。
type ExpiredDetails struct {
	ExpiredAt time.Time `json:"expired_at"`
}

// AuditAction はexpiredを返す。
func (ExpiredDetails) AuditAction() AuditAction { return AuditActionExpired }

// DecodeAuditDetails はJSONペイロードをアクション種別に対応する詳細型にデコードする。
// 未知のアクションに対してはエラーを返す。
func DecodeAuditDetails(action AuditAction, data []byte) (AuditDetails, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}

	var details AuditDetails
	switch action {
	case AuditActionCreated:
		details = &CreatedDetails{}
	case AuditActionSent:
		details = &SentDetails{}
	case AuditActionViewed:
		details = &ViewedDetails{}
	case AuditActionSigned:
		details = &SignedDetails{}
	case AuditActionCompleted:
		details = &CompletedDetails{}
	case AuditActionEdited:
		details = &EditedDetails{}
	case AuditActionCanceled:
		details = &CanceledDetails{}
	case AuditActionExpired:
		details = &ExpiredDetails{}
	default:
		return nil, fmt.Errorf("未知の監査アクションです: %s", action)
	}

	if err := json.Unmarshal(data, details); err != nil {
		return nil, fmt.Errorf("監査詳細のデコードに失敗しました: %w", err)
	}
	return details, nil
}
