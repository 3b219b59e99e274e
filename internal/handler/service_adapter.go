package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/pactman/internal/contract"
	"github.com/hitoshi/pactman/internal/metrics"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/recipient"
	"github.com/hitoshi/pactman/internal/user"
)

// ContractServiceAdapter は contract.Service と recipient.Service を
// ContractServiceInterface に適合させるアダプタ。
type ContractServiceAdapter struct {
	contractSvc  *contract.Service
	recipientSvc *recipient.Service
	collector    metrics.MetricsCollector
}

// NewContractServiceAdapter はContractServiceAdapterを生成する。
// collectorはnil可（テストや計測無効時）。
func NewContractServiceAdapter(
	contractSvc *contract.Service,
	recipientSvc *recipient.Service,
	collector metrics.MetricsCollector,
) *ContractServiceAdapter {
	return &ContractServiceAdapter{
		contractSvc:  contractSvc,
		recipientSvc: recipientSvc,
		collector:    collector,
	}
}

// Create は新しい契約書をdraft状態で作成しhandlerレスポンス型で返す。
func (a *ContractServiceAdapter) Create(ctx context.Context, userID string, params contract.CreateParams) (*contractResponse, error) {
	created, err := a.contractSvc.Create(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	if a.collector != nil {
		a.collector.RecordContractCreated()
	}
	resp := toContractResponse(created)
	return &resp, nil
}

// List はユーザーの契約書一覧をhandlerレスポンス型で返す。
func (a *ContractServiceAdapter) List(ctx context.Context, userID string) ([]contractSummaryResponse, error) {
	summaries, err := a.contractSvc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]contractSummaryResponse, len(summaries))
	for i, s := range summaries {
		results[i] = contractSummaryResponse{
			ID:             s.ID,
			Title:          s.Title,
			Status:         string(s.Status),
			Excerpt:        s.Excerpt,
			RecipientCount: s.RecipientCount,
			SignedCount:    s.SignedCount,
			ExpiresAt:      s.ExpiresAt,
			CompletedAt:    s.CompletedAt,
			CreatedAt:      s.CreatedAt,
		}
	}
	return results, nil
}

// Get は契約書の詳細をhandlerレスポンス型で返す。
func (a *ContractServiceAdapter) Get(ctx context.Context, userID, contractID string) (*contractDetailResponse, error) {
	detail, err := a.contractSvc.Get(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}

	recipients := make([]recipientResponse, len(detail.Recipients))
	for i, rec := range detail.Recipients {
		recipients[i] = toRecipientResponse(rec)
	}

	signatures := make([]signatureResponse, len(detail.Signatures))
	for i, sig := range detail.Signatures {
		signatures[i] = signatureResponse{
			ID:          sig.ID,
			RecipientID: sig.RecipientID,
			Method:      string(sig.Method),
			Data:        sig.Data,
			CreatedAt:   sig.CreatedAt,
		}
	}

	auditTrail, err := toAuditEntryResponses(detail.AuditTrail)
	if err != nil {
		return nil, err
	}

	return &contractDetailResponse{
		contractResponse: toContractResponse(detail.Contract),
		Recipients:       recipients,
		Signatures:       signatures,
		AuditTrail:       auditTrail,
	}, nil
}

// Update はdraft状態の契約書を部分更新しhandlerレスポンス型で返す。
func (a *ContractServiceAdapter) Update(ctx context.Context, userID, contractID string, params contract.UpdateParams) (*contractResponse, error) {
	updated, err := a.contractSvc.Update(ctx, userID, contractID, params)
	if err != nil {
		return nil, err
	}
	resp := toContractResponse(updated)
	return &resp, nil
}

// Cancel はpending状態の契約書を取り消す。
func (a *ContractServiceAdapter) Cancel(ctx context.Context, userID, contractID string) error {
	return a.contractSvc.Cancel(ctx, userID, contractID)
}

// Delete は契約書と関連データを削除する。
func (a *ContractServiceAdapter) Delete(ctx context.Context, userID, contractID string) error {
	return a.contractSvc.Delete(ctx, userID, contractID)
}

// Send は受信者を登録し契約書をpendingへ遷移させる。
func (a *ContractServiceAdapter) Send(ctx context.Context, userID, contractID string, params recipient.SendParams) ([]recipientResponse, error) {
	recipients, err := a.recipientSvc.RegisterRecipients(ctx, userID, contractID, params)
	if err != nil {
		return nil, err
	}
	if a.collector != nil {
		a.collector.RecordContractSent(len(recipients))
	}

	results := make([]recipientResponse, len(recipients))
	for i, rec := range recipients {
		results[i] = toRecipientResponse(rec)
	}
	return results, nil
}

// AuditTrail は契約書の監査ログを作成日時降順で返す。
// オーナーチェックを含むため契約書詳細の取得を経由する。
func (a *ContractServiceAdapter) AuditTrail(ctx context.Context, userID, contractID string) ([]auditEntryResponse, error) {
	detail, err := a.contractSvc.Get(ctx, userID, contractID)
	if err != nil {
		return nil, err
	}
	return toAuditEntryResponses(detail.AuditTrail)
}

// toContractResponse はドメインのContractをhandlerのレスポンス型に変換する。
func toContractResponse(c *model.Contract) contractResponse {
	return contractResponse{
		ID:          c.ID,
		Title:       c.Title,
		Content:     c.Content,
		Status:      string(c.Status),
		TemplateID:  c.TemplateID,
		ExpiresAt:   c.ExpiresAt,
		CompletedAt: c.CompletedAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// toRecipientResponse はドメインのRecipientをhandlerのレスポンス型に変換する。
func toRecipientResponse(rec *model.Recipient) recipientResponse {
	return recipientResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Email:       rec.Email,
		Ordinal:     rec.Ordinal,
		Status:      string(rec.Status),
		AccessToken: rec.AccessToken,
		ViewedAt:    rec.ViewedAt,
		SignedAt:    rec.SignedAt,
	}
}

// toAuditEntryResponses は監査エントリ列をhandlerのレスポンス型に変換する。
// 詳細ペイロードはアクション種別ごとの型からJSONにシリアライズされる。
func toAuditEntryResponses(entries []*model.AuditLogEntry) ([]auditEntryResponse, error) {
	results := make([]auditEntryResponse, len(entries))
	for i, entry := range entries {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, fmt.Errorf("監査詳細のシリアライズに失敗しました: %w", err)
		}
		results[i] = auditEntryResponse{
			ID:        entry.ID,
			Action:    string(entry.Action),
			Details:   details,
			UserID:    entry.UserID,
			IPAddress: entry.IPAddress,
			CreatedAt: entry.CreatedAt,
		}
	}
	return results, nil
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// GetProfile はユーザーのプロフィールをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetProfile(ctx context.Context, userID string) (*userResponse, error) {
	profile, err := a.svc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(profile)
	return &resp, nil
}

// UpdateProfile は表示名と会社名を更新しhandlerレスポンス型で返す。
func (a *UserServiceAdapter) UpdateProfile(ctx context.Context, userID, name, company string) (*userResponse, error) {
	updated, err := a.svc.UpdateProfile(ctx, userID, name, company)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(updated)
	return &resp, nil
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// toUserResponse はドメインのUserをhandlerのレスポンス型に変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Company:   u.Company,
		CreatedAt: u.CreatedAt,
	}
}

// --- compile-time interface checks ---

var _ ContractServiceInterface = (*ContractServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
