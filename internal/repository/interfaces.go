// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pactman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はユーザーの表示名と会社名を更新する。
	UpdateProfile(ctx context.Context, id, name, company string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentitiesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ContractUpdate は契約書の部分更新パラメータ。
// nilフィールドは「指定なし＝変更しない」を意味する。
// 有効期限の削除は意図的な操作としてClearExpiresAtで明示する
// （nilのExpiresAtと区別するため）。
type ContractUpdate struct {
	Title          *string
	Content        *string
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// ChangedFields は更新対象のフィールド名を列挙する。監査ログのedited詳細に使用する。
func (u ContractUpdate) ChangedFields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Content != nil {
		fields = append(fields, "content")
	}
	if u.ExpiresAt != nil || u.ClearExpiresAt {
		fields = append(fields, "expires_at")
	}
	return fields
}

// IsEmpty は更新対象フィールドが1つもないことを返す。
func (u ContractUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.ExpiresAt == nil && !u.ClearExpiresAt
}

// ContractWithCounts は契約書と受信者数・署名数を結合した一覧表示用の構造体。
type ContractWithCounts struct {
	model.Contract
	RecipientCount int
	SignedCount    int
	SignatureCount int
}

// ContractRepository は契約書データの永続化インターフェース。
// 状態遷移は現在状態を条件に含む比較更新（compare-and-set）で行い、
// 並行する重複呼び出しのうち1つだけが遷移を実行する。
type ContractRepository interface {
	// FindByID は指定IDの契約書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Contract, error)

	// FindByIDAndOwner はIDとオーナーIDで契約書を検索する。見つからない場合はnilを返す。
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Contract, error)

	// ListByOwner はオーナーの契約書一覧を受信者数・署名数付きで作成日時降順に返す。
	ListByOwner(ctx context.Context, ownerID string) ([]ContractWithCounts, error)

	// Create は契約書を作成する。
	Create(ctx context.Context, contract *model.Contract) error

	// UpdateFields は契約書のフィールドを部分更新する。
	// nilフィールドは変更せず、既存の値を維持する。
	UpdateFields(ctx context.Context, id string, update ContractUpdate) error

	// CompleteIfPending はpending状態の契約書をcompletedへ遷移させる。
	// 既にpendingでない場合は何もせずfalseを返す。並行呼び出しのうち
	// 1つだけがtrueを受け取る。
	CompleteIfPending(ctx context.Context, id string, completedAt time.Time) (bool, error)

	// CancelIfPending はpending状態の契約書をcanceledへ遷移させる。
	CancelIfPending(ctx context.Context, id string) (bool, error)

	// ExpireDue は有効期限を過ぎたpending契約書をexpiredへ遷移させ、
	// 遷移した契約書のIDを返す。
	ExpireDue(ctx context.Context, now time.Time) ([]string, error)

	// DeleteByID は指定IDの契約書を削除する。
	// 受信者・署名・監査ログはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByOwner はオーナーの全契約書を削除する。退会処理用。
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// RecipientRepository は受信者データの永続化インターフェース。
type RecipientRepository interface {
	// FindByID は指定IDの受信者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Recipient, error)

	// FindByAccessToken はアクセストークンで受信者を検索する。見つからない場合はnilを返す。
	FindByAccessToken(ctx context.Context, token string) (*model.Recipient, error)

	// ListByContract は契約書の受信者一覧をordinal昇順で返す。
	ListByContract(ctx context.Context, contractID string) ([]*model.Recipient, error)

	// CreateBatchForSend は契約書のdraft→pending遷移と受信者の一括作成を
	// 同一トランザクションで行う。expiresAtがnilでなければ有効期限も設定する。
	// 遷移は status = 'draft' を条件とする比較更新で先に実行されるため、
	// 並行する送信のうち遷移できた1つだけが受信者を作成しtrueを受け取る。
	// 負けた側は受信者を1件も作成せずfalseを受け取る。
	CreateBatchForSend(ctx context.Context, recipients []*model.Recipient, contractID string, expiresAt *time.Time) (bool, error)

	// MarkViewedIfUnviewed はviewed_atが未設定の場合のみ閲覧済みにする。
	// 条件付きUPDATEで実装し、同時重複呼び出しでは1回だけtrueを返す。
	// 署名済みの受信者のステータスはviewedへ戻さない。
	MarkViewedIfUnviewed(ctx context.Context, id string, viewedAt time.Time) (bool, error)

	// MarkSignedIfUnsigned はstatusがsignedでない場合のみ署名済みにする。
	// 条件付きUPDATEで実装し、同時重複呼び出しでは1回だけtrueを返す。
	MarkSignedIfUnsigned(ctx context.Context, id string, signedAt time.Time) (bool, error)
}

// SignatureRepository は署名データの永続化インターフェース。
// 署名は作成と読み取りのみで、更新操作は存在しない。
type SignatureRepository interface {
	// Create は署名を作成する。
	// recipient_idの一意制約違反はAlreadySignedエラーに変換して返す。
	Create(ctx context.Context, signature *model.Signature) error

	// FindByRecipient は受信者の署名を取得する。見つからない場合はnilを返す。
	FindByRecipient(ctx context.Context, recipientID string) (*model.Signature, error)

	// ListByContract は契約書の署名一覧を作成日時昇順で返す。
	ListByContract(ctx context.Context, contractID string) ([]*model.Signature, error)
}

// AuditLogRepository は監査ログの永続化インターフェース。
// 追記と読み取りのみを提供し、個別の更新・削除は定義しない。
type AuditLogRepository interface {
	// Create は監査エントリを追記する。各INSERTは独立しており、
	// 並行書き込みに対して相互排他を必要としない。
	Create(ctx context.Context, entry *model.AuditLogEntry) error

	// ListByContract は契約書の監査エントリを返す。
	// descendingがtrueの場合は作成日時降順（表示用）、falseの場合は昇順（論理順）。
	// 呼び出しごとに新しいクエリを発行し、カーソル状態は保持しない。
	ListByContract(ctx context.Context, contractID string, descending bool) ([]*model.AuditLogEntry, error)
}
