// Package contract は契約書ライフサイクルのドメインロジックを提供する。
//
// ステータス遷移の所有者はこのパッケージであり、遷移は
// draft→pending→completed の前進と、pending→{expired, canceled} の
// 終端退出のみを許可する。遷移の実体はリポジトリの条件付きUPDATEで、
// アプリケーション側のロックは使用しない。
package contract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/repository"
	"github.com/hitoshi/pactman/internal/security"
)

// AuditAppender は監査エントリの追記インターフェース。
// audit.Serviceの部分集合として定義する。
type AuditAppender interface {
	Append(ctx context.Context, contractID string, details model.AuditDetails, actorUserID, ipAddress, userAgent string) error
}

// excerptLength は一覧プレビューの最大文字数。
const excerptLength = 120

// CreateParams は契約書作成のパラメータ。
type CreateParams struct {
	Title      string
	Content    string // 未サニタイズのHTML
	TemplateID string
}

// UpdateParams は契約書の部分更新パラメータ。
// nilフィールドは「指定なし＝変更しない」。有効期限の削除はClearExpiresAtで明示する。
type UpdateParams struct {
	Title          *string
	Content        *string // 未サニタイズのHTML
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// Detail は契約書と関連エンティティをまとめた詳細表示用のドメインオブジェクト。
type Detail struct {
	Contract   *model.Contract
	Recipients []*model.Recipient
	Signatures []*model.Signature
	AuditTrail []*model.AuditLogEntry // 作成日時降順
}

// Summary は契約書一覧の1行を表す。本文はプレーンテキストの抜粋に変換される。
type Summary struct {
	ID             string
	Title          string
	Status         model.ContractStatus
	Excerpt        string
	RecipientCount int
	SignedCount    int
	ExpiresAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// Service は契約書ライフサイクルのサービス層。
type Service struct {
	contractRepo  repository.ContractRepository
	recipientRepo repository.RecipientRepository
	signatureRepo repository.SignatureRepository
	auditRepo     repository.AuditLogRepository
	auditor       AuditAppender
	sanitizer     security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	contractRepo repository.ContractRepository,
	recipientRepo repository.RecipientRepository,
	signatureRepo repository.SignatureRepository,
	auditRepo repository.AuditLogRepository,
	auditor AuditAppender,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		contractRepo:  contractRepo,
		recipientRepo: recipientRepo,
		signatureRepo: signatureRepo,
		auditRepo:     auditRepo,
		auditor:       auditor,
		sanitizer:     sanitizer,
	}
}

// Create は新しい契約書をdraft状態で作成する。
// 本文HTMLは保存前にサニタイズされる。
func (s *Service) Create(ctx context.Context, ownerID string, params CreateParams) (*model.Contract, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if strings.TrimSpace(params.Content) == "" {
		return nil, model.NewValidationError("本文は必須です")
	}

	now := time.Now().UTC()
	contract := &model.Contract{
		ID:         uuid.New().String(),
		UserID:     ownerID,
		Title:      params.Title,
		Content:    s.sanitizer.Sanitize(params.Content),
		Status:     model.ContractStatusDraft,
		TemplateID: params.TemplateID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, fmt.Errorf("契約書の作成に失敗しました: %w", err)
	}

	if err := s.auditor.Append(ctx, contract.ID,
		model.CreatedDetails{TemplateID: params.TemplateID},
		ownerID, "", ""); err != nil {
		return nil, err
	}

	slog.Info("契約書を作成しました",
		slog.String("contract_id", contract.ID),
		slog.String("user_id", ownerID),
	)

	return contract, nil
}

// Get は契約書の詳細を受信者・署名・監査証跡付きで返す。
// 他ユーザーの契約書は存在を秘匿するためNotFoundを返す。
func (s *Service) Get(ctx context.Context, ownerID, contractID string) (*Detail, error) {
	contract, err := s.contractRepo.FindByIDAndOwner(ctx, contractID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	if contract == nil {
		return nil, model.NewContractNotFoundError(contractID)
	}

	recipients, err := s.recipientRepo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("受信者一覧の取得に失敗しました: %w", err)
	}

	signatures, err := s.signatureRepo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("署名一覧の取得に失敗しました: %w", err)
	}

	// 表示用は降順。論理順が必要な場合は昇順で取り直す
	trail, err := s.auditRepo.ListByContract(ctx, contractID, true)
	if err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗しました: %w", err)
	}

	return &Detail{
		Contract:   contract,
		Recipients: recipients,
		Signatures: signatures,
		AuditTrail: trail,
	}, nil
}

// List はオーナーの契約書一覧を作成日時降順で返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]Summary, error) {
	rows, err := s.contractRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("契約書一覧の取得に失敗しました: %w", err)
	}

	results := make([]Summary, len(rows))
	for i, row := range rows {
		results[i] = Summary{
			ID:             row.ID,
			Title:          row.Title,
			Status:         row.Status,
			Excerpt:        security.ExtractText(row.Content, excerptLength),
			RecipientCount: row.RecipientCount,
			SignedCount:    row.SignedCount,
			ExpiresAt:      row.ExpiresAt,
			CompletedAt:    row.CompletedAt,
			CreatedAt:      row.CreatedAt,
		}
	}
	return results, nil
}

// Update は契約書のフィールドを部分更新する。
// 完了・期限切れ・取り消し済みの契約書は編集できない。
// 成功した編集は変更フィールド名を列挙したeditedエントリを監査ログに残す。
func (s *Service) Update(ctx context.Context, ownerID, contractID string, params UpdateParams) (*model.Contract, error) {
	contract, err := s.contractRepo.FindByIDAndOwner(ctx, contractID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	if contract == nil {
		return nil, model.NewContractNotFoundError(contractID)
	}

	if !contract.Status.IsEditable() {
		return nil, model.NewInvalidStateError(contract.Status, "編集")
	}

	update := repository.ContractUpdate{
		Title:          params.Title,
		ExpiresAt:      params.ExpiresAt,
		ClearExpiresAt: params.ClearExpiresAt,
	}
	if params.Content != nil {
		sanitized := s.sanitizer.Sanitize(*params.Content)
		update.Content = &sanitized
	}

	if update.IsEmpty() {
		return nil, model.NewValidationError("更新対象のフィールドがありません")
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, model.NewValidationError("タイトルを空にはできません")
	}

	if err := s.contractRepo.UpdateFields(ctx, contractID, update); err != nil {
		return nil, fmt.Errorf("契約書の更新に失敗しました: %w", err)
	}

	if err := s.auditor.Append(ctx, contractID,
		model.EditedDetails{Fields: update.ChangedFields()},
		ownerID, "", ""); err != nil {
		return nil, err
	}

	updated, err := s.contractRepo.FindByIDAndOwner(ctx, contractID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("更新後の契約書の再取得に失敗しました: %w", err)
	}
	return updated, nil
}

// Cancel はpending状態の契約書をオーナー操作で取り消す。
func (s *Service) Cancel(ctx context.Context, ownerID, contractID string) error {
	contract, err := s.contractRepo.FindByIDAndOwner(ctx, contractID, ownerID)
	if err != nil {
		return fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	if contract == nil {
		return model.NewContractNotFoundError(contractID)
	}

	canceled, err := s.contractRepo.CancelIfPending(ctx, contractID)
	if err != nil {
		return fmt.Errorf("契約書の取り消しに失敗しました: %w", err)
	}
	if !canceled {
		return model.NewInvalidStateError(contract.Status, "取り消し")
	}

	if err := s.auditor.Append(ctx, contractID,
		model.CanceledDetails{}, ownerID, "", ""); err != nil {
		return err
	}

	slog.Info("契約書を取り消しました",
		slog.String("contract_id", contractID),
		slog.String("user_id", ownerID),
	)
	return nil
}

// Delete は契約書を物理削除する。
// 受信者・署名・監査ログはCASCADE削除される。明示的なオーナー操作のみが
// これらのレコードを消す手段である。
func (s *Service) Delete(ctx context.Context, ownerID, contractID string) error {
	contract, err := s.contractRepo.FindByIDAndOwner(ctx, contractID, ownerID)
	if err != nil {
		return fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	if contract == nil {
		return model.NewContractNotFoundError(contractID)
	}

	if err := s.contractRepo.DeleteByID(ctx, contractID); err != nil {
		return fmt.Errorf("契約書の削除に失敗しました: %w", err)
	}

	slog.Info("契約書を削除しました",
		slog.String("contract_id", contractID),
		slog.String("user_id", ownerID),
	)
	return nil
}

// CheckCompletion は全受信者の署名完了を確認し、完了していれば
// 契約書をcompletedへ遷移させる。戻り値は契約書が完了状態かどうか。
//
// 最終署名が同時に2件届いた場合でも、遷移は status='pending' を条件とする
// 条件付きUPDATEで行われるため、completedの監査エントリを追記するのは
// 実際に行を更新できた1回の呼び出しだけである。冗長な再呼び出しは安全なno-op。
func (s *Service) CheckCompletion(ctx context.Context, contractID, ipAddress, userAgent string) (bool, error) {
	recipients, err := s.recipientRepo.ListByContract(ctx, contractID)
	if err != nil {
		return false, fmt.Errorf("受信者一覧の取得に失敗しました: %w", err)
	}
	if len(recipients) == 0 {
		return false, nil
	}

	for _, r := range recipients {
		if !r.HasSigned() {
			return false, nil
		}
	}

	now := time.Now().UTC()
	flipped, err := s.contractRepo.CompleteIfPending(ctx, contractID, now)
	if err != nil {
		return false, fmt.Errorf("completedへの遷移に失敗しました: %w", err)
	}

	if !flipped {
		// pendingでなかった。並行する完了チェックが先に遷移させた場合は
		// completedだが、取り消しや期限切れで閉じられた可能性もあるため
		// 現在状態を読み直して判定する
		current, err := s.contractRepo.FindByID(ctx, contractID)
		if err != nil {
			return false, fmt.Errorf("契約書の再取得に失敗しました: %w", err)
		}
		return current != nil && current.Status == model.ContractStatusCompleted, nil
	}

	if err := s.auditor.Append(ctx, contractID,
		model.CompletedDetails{RecipientCount: len(recipients)},
		"", ipAddress, userAgent); err != nil {
		return false, err
	}
	slog.Info("契約書が完了しました",
		slog.String("contract_id", contractID),
		slog.Int("recipient_count", len(recipients)),
	)
	return true, nil
}

// ExpireDue は有効期限を過ぎたpending契約書をexpiredへ遷移させ、件数を返す。
// ワーカーから定期的に呼ばれる。監査追記が途中で失敗した場合、遷移自体は
// 確定済みのため、そこまでに処理できた件数をエラーと併せて返す。
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	ids, err := s.contractRepo.ExpireDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("期限切れ遷移に失敗しました: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := s.auditor.Append(ctx, id,
			model.ExpiredDetails{ExpiredAt: now}, "", "", ""); err != nil {
			return expired, err
		}
		expired++
		slog.Info("契約書が期限切れになりました", slog.String("contract_id", id))
	}

	return expired, nil
}
