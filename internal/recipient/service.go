// Package recipient は受信者登録と閲覧状態の管理を提供する。
package recipient

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
type AuditAppender interface {
	Append(ctx context.Context, contractID string, details model.AuditDetails, actorUserID, ipAddress, userAgent string) error
}

// Entry は受信者登録の入力1件を表す。
type Entry struct {
	Name  string
	Email string
}

// SendParams は契約書送信のパラメータ。
type SendParams struct {
	Entries       []Entry
	Message       string
	ExpiresInDays int // 0の場合は有効期限なし
}

// Service は受信者ドメインのサービス層。
type Service struct {
	contractRepo  repository.ContractRepository
	recipientRepo repository.RecipientRepository
	auditor       AuditAppender
	maxRecipients int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	contractRepo repository.ContractRepository,
	recipientRepo repository.RecipientRepository,
	auditor AuditAppender,
	maxRecipients int,
) *Service {
	return &Service{
		contractRepo:  contractRepo,
		recipientRepo: recipientRepo,
		auditor:       auditor,
		maxRecipients: maxRecipients,
	}
}

// RegisterRecipients はdraft状態の契約書に受信者を登録し、pendingへ遷移させる。
// 各受信者には推測不能なアクセストークンが発行され、署名リンクとして使われる。
// 成功すると送信先メールアドレスを列挙したsentエントリが監査ログに残る。
func (s *Service) RegisterRecipients(ctx context.Context, ownerID, contractID string, params SendParams) ([]*model.Recipient, error) {
	if err := s.validateParams(params); err != nil {
		return nil, err
	}

	contract, err := s.contractRepo.FindByIDAndOwner(ctx, contractID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	if contract == nil {
		return nil, model.NewContractNotFoundError(contractID)
	}
	if contract.Status != model.ContractStatusDraft {
		return nil, model.NewInvalidStateError(contract.Status, "送信")
	}

	now := time.Now().UTC()
	recipients := make([]*model.Recipient, len(params.Entries))
	emails := make([]string, len(params.Entries))
	for i, entry := range params.Entries {
		token, err := security.GenerateAccessToken()
		if err != nil {
			return nil, fmt.Errorf("アクセストークンの生成に失敗しました: %w", err)
		}
		recipients[i] = &model.Recipient{
			ID:          uuid.New().String(),
			ContractID:  contractID,
			Name:        entry.Name,
			Email:       entry.Email,
			Role:        model.RecipientRoleSigner,
			Ordinal:     i + 1,
			Status:      model.RecipientStatusSent,
			AccessToken: token,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		emails[i] = entry.Email
	}

	var expiresAt *time.Time
	if params.ExpiresInDays > 0 {
		t := now.AddDate(0, 0, params.ExpiresInDays)
		expiresAt = &t
	}

	// 遷移と受信者作成は同一トランザクション。並行する送信に負けた側は
	// 受信者を1件も残さない
	transitioned, err := s.recipientRepo.CreateBatchForSend(ctx, recipients, contractID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("受信者の登録に失敗しました: %w", err)
	}
	if !transitioned {
		// FindByIDAndOwnerとの間で別リクエストが先に送信した
		return nil, model.NewInvalidStateError(model.ContractStatusPending, "送信")
	}

	if err := s.auditor.Append(ctx, contractID,
		model.SentDetails{RecipientEmails: emails, Message: params.Message},
		ownerID, "", ""); err != nil {
		return nil, err
	}

	slog.Info("契約書を送信しました",
		slog.String("contract_id", contractID),
		slog.String("user_id", ownerID),
		slog.Int("recipient_count", len(recipients)),
	)

	return recipients, nil
}

// MarkViewed は受信者を閲覧済みにする。viewed_atが未設定の場合のみ有効で、
// 初回の呼び出しだけがviewedエントリを監査ログに追記する。重複呼び出しはno-op。
func (s *Service) MarkViewed(ctx context.Context, recipientID, ipAddress, userAgent string) error {
	recipient, err := s.recipientRepo.FindByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("受信者の取得に失敗しました: %w", err)
	}
	if recipient == nil {
		return model.NewRecipientNotFoundError(recipientID)
	}

	marked, err := s.recipientRepo.MarkViewedIfUnviewed(ctx, recipientID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("閲覧状態の更新に失敗しました: %w", err)
	}
	if !marked {
		return nil
	}

	if err := s.auditor.Append(ctx, recipient.ContractID,
		model.ViewedDetails{RecipientEmail: recipient.Email},
		"", ipAddress, userAgent); err != nil {
		return err
	}

	slog.Info("受信者が契約書を閲覧しました",
		slog.String("contract_id", recipient.ContractID),
		slog.String("recipient_id", recipientID),
	)
	return nil
}

func (s *Service) validateParams(params SendParams) error {
	if len(params.Entries) == 0 {
		return model.NewValidationError("受信者を1人以上指定してください")
	}
	if len(params.Entries) > s.maxRecipients {
		return model.NewValidationError(fmt.Sprintf("受信者は%d人までです", s.maxRecipients))
	}
	if params.ExpiresInDays < 0 {
		return model.NewValidationError("有効期限の日数は0以上で指定してください")
	}
	seen := make(map[string]bool, len(params.Entries))
	for _, entry := range params.Entries {
		email := strings.TrimSpace(entry.Email)
		if strings.TrimSpace(entry.Name) == "" {
			return model.NewValidationError("受信者名は必須です")
		}
		if email == "" || !strings.Contains(email, "@") {
			return model.NewValidationError(fmt.Sprintf("メールアドレスが不正です: %s", entry.Email))
		}
		if seen[email] {
			return model.NewValidationError(fmt.Sprintf("メールアドレスが重複しています: %s", email))
		}
		seen[email] = true
	}
	return nil
}
