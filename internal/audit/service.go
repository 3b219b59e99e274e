// Package audit は契約書イベントの追記専用監査ログを提供する。
//
// 監査ログの証拠価値は不変性に依存するため、エントリの更新・個別削除は
// 一切公開しない。エントリが消えるのは契約書ごとのCASCADE削除のみで、
// それはオーナーの明示操作としてこのパッケージの外で行われる。
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/repository"
)

// Service は監査ログのサービス層。
type Service struct {
	repo repository.AuditLogRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.AuditLogRepository) *Service {
	return &Service{repo: repo}
}

// Append は監査エントリを追記する。
// アクション種別は詳細ペイロードの型から導出されるため、
// アクションと詳細の組み合わせ間違いは起こらない。
// actorUserIDは受信者による匿名操作（閲覧・署名）では空を渡す。
func (s *Service) Append(
	ctx context.Context,
	contractID string,
	details model.AuditDetails,
	actorUserID, ipAddress, userAgent string,
) error {
	entry := &model.AuditLogEntry{
		ID:         uuid.New().String(),
		ContractID: contractID,
		UserID:     actorUserID,
		Action:     details.AuditAction(),
		Details:    details,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("監査エントリの追記に失敗しました: %w", err)
	}
	return nil
}

// ListByContract は契約書の監査エントリを返す。
// 呼び出しごとに新しいクエリを発行し、カーソル状態は保持しない。
func (s *Service) ListByContract(ctx context.Context, contractID string, descending bool) ([]*model.AuditLogEntry, error) {
	entries, err := s.repo.ListByContract(ctx, contractID, descending)
	if err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗しました: %w", err)
	}
	return entries, nil
}
