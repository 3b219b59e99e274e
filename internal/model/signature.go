// Package model はドメインモデルを定義する。
package model

import "time"

// Signature は受信者の同意を証明する署名アーティファクトを表す。
// 受信者1人につき最大1件のみ作成され、作成後は変更されない。
// IPAddressとUserAgentは法的証跡として署名時のリクエストから記録する。
type Signature struct {
	ID          string
	ContractID  string
	RecipientID string
	Method      SignatureMethod
	Data        string // 署名ペイロード（描画画像のdata URL等）。保存後は不変
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}

// SignatureMethod は署名の入力方式を表す。
type SignatureMethod string

const (
	// SignatureMethodDraw は手描き署名。
	SignatureMethodDraw SignatureMethod = "draw"
	// SignatureMethodType はタイプ入力した氏名をレンダリングした署名。
	SignatureMethodType SignatureMethod = "type"
)

// IsValid は署名方式が定義済みのものかを返す。
func (m SignatureMethod) IsValid() bool {
	return m == SignatureMethodDraw || m == SignatureMethodType
}
