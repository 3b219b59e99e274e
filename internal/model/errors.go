// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, contract, signing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeContractNotFound  = "CONTRACT_NOT_FOUND"
	ErrCodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	ErrCodeInvalidLink       = "INVALID_LINK"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeAlreadySigned     = "ALREADY_SIGNED"
	ErrCodeContractClosed    = "CONTRACT_CLOSED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeTemplateNotFound  = "TEMPLATE_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewContractNotFoundError は契約書未検出エラーを生成する。
// 他ユーザーの契約書への操作も、存在を秘匿するため同じエラーで返す。
func NewContractNotFoundError(contractID string) *APIError {
	return &APIError{
		Code:     ErrCodeContractNotFound,
		Message:  fmt.Sprintf("指定された契約書が見つかりません: %s", contractID),
		Category: "contract",
		Action:   "契約書IDを確認してください。",
	}
}

// NewRecipientNotFoundError は受信者未検出エラーを生成する。
func NewRecipientNotFoundError(recipientID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipientNotFound,
		Message:  fmt.Sprintf("指定された受信者が見つかりません: %s", recipientID),
		Category: "contract",
		Action:   "受信者IDを確認してください。",
	}
}

// NewInvalidLinkError は署名リンクが無効な場合のエラーを生成する。
// トークンの値は列挙攻撃への手がかりになるためメッセージに含めない。
func NewInvalidLinkError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLink,
		Message:  "署名リンクが無効か、期限切れです。",
		Category: "signing",
		Action:   "送信者に新しい署名リンクの発行を依頼してください。",
	}
}

// NewInvalidStateError は現在の状態で許可されない操作へのエラーを生成する。
func NewInvalidStateError(status ContractStatus, operation string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("現在の状態（%s）では%sできません。", status, operation),
		Category: "contract",
		Action:   "契約書の状態を確認してください。",
	}
}

// NewAlreadySignedError は二重署名エラーを生成する。
func NewAlreadySignedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadySigned,
		Message:  "この契約書には既に署名済みです。",
		Category: "signing",
		Action:   "署名は1回のみ有効です。再署名は不要です。",
	}
}

// NewContractClosedError は終了済み契約書への署名操作エラーを生成する。
func NewContractClosedError(status ContractStatus) *APIError {
	msg := "この契約書は取り消されました。"
	if status == ContractStatusExpired {
		msg = "この契約書は有効期限が切れています。"
	}
	return &APIError{
		Code:     ErrCodeContractClosed,
		Message:  msg,
		Category: "signing",
		Action:   "送信者に契約書の再送を依頼してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTemplateNotFoundError はテンプレート未検出エラーを生成する。
func NewTemplateNotFoundError(templateID string) *APIError {
	return &APIError{
		Code:     ErrCodeTemplateNotFound,
		Message:  fmt.Sprintf("指定されたテンプレートが見つかりません: %s", templateID),
		Category: "contract",
		Action:   "テンプレートIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
