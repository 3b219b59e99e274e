package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/pactman/internal/model"
)

// PostgresContractRepo はPostgreSQLを使用した契約書リポジトリ。
// 状態遷移は現在状態をWHERE句に含む条件付きUPDATEで実装し、
// アプリケーション側のロックなしで並行呼び出しに対する一貫性を保証する。
type PostgresContractRepo struct {
	db *sql.DB
}

// NewPostgresContractRepo はPostgresContractRepoを生成する。
func NewPostgresContractRepo(db *sql.DB) *PostgresContractRepo {
	return &PostgresContractRepo{db: db}
}

const contractColumns = `id, user_id, title, content, status, template_id, expires_at, completed_at, created_at, updated_at`

// scanContract は1行を*model.Contractに変換する。
func scanContract(row interface{ Scan(...any) error }) (*model.Contract, error) {
	c := &model.Contract{}
	var templateID sql.NullString
	var expiresAt, completedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.UserID, &c.Title, &c.Content, &c.Status,
		&templateID, &expiresAt, &completedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateID.Valid {
		c.TemplateID = templateID.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return c, nil
}

// FindByID は指定IDの契約書を取得する。見つからない場合はnilを返す。
func (r *PostgresContractRepo) FindByID(ctx context.Context, id string) (*model.Contract, error) {
	c, err := scanContract(r.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	return c, nil
}

// FindByIDAndOwner はIDとオーナーIDで契約書を検索する。見つからない場合はnilを返す。
func (r *PostgresContractRepo) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Contract, error) {
	c, err := scanContract(r.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 AND user_id = $2`, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListByOwner はオーナーの契約書一覧を受信者数・署名数付きで作成日時降順に返す。
func (r *PostgresContractRepo) ListByOwner(ctx context.Context, ownerID string) ([]ContractWithCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.title, c.content, c.status, c.template_id,
		        c.expires_at, c.completed_at, c.created_at, c.updated_at,
		        COUNT(DISTINCT r.id) AS recipient_count,
		        COUNT(DISTINCT r.id) FILTER (WHERE r.status = 'signed') AS signed_count,
		        COUNT(DISTINCT s.id) AS signature_count
		 FROM contracts c
		 LEFT JOIN recipients r ON r.contract_id = c.id
		 LEFT JOIN signatures s ON s.contract_id = c.id
		 WHERE c.user_id = $1
		 GROUP BY c.id
		 ORDER BY c.created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("契約書一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []ContractWithCounts
	for rows.Next() {
		var cw ContractWithCounts
		var templateID sql.NullString
		var expiresAt, completedAt sql.NullTime

		err := rows.Scan(
			&cw.ID, &cw.UserID, &cw.Title, &cw.Content, &cw.Status,
			&templateID, &expiresAt, &completedAt,
			&cw.CreatedAt, &cw.UpdatedAt,
			&cw.RecipientCount, &cw.SignedCount, &cw.SignatureCount,
		)
		if err != nil {
			return nil, fmt.Errorf("契約書一覧の読み取りに失敗しました: %w", err)
		}

		if templateID.Valid {
			cw.TemplateID = templateID.String
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			cw.ExpiresAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time
			cw.CompletedAt = &t
		}
		results = append(results, cw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("契約書一覧の走査に失敗しました: %w", err)
	}

	return results, nil
}

// Create は契約書を作成する。
func (r *PostgresContractRepo) Create(ctx context.Context, contract *model.Contract) error {
	var templateID any
	if contract.TemplateID != "" {
		templateID = contract.TemplateID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contracts (id, user_id, title, content, status, template_id, expires_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		contract.ID, contract.UserID, contract.Title, contract.Content, contract.Status,
		templateID, contract.ExpiresAt, contract.CompletedAt,
		contract.CreatedAt, contract.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("契約書の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateFields は契約書のフィールドを部分更新する。
// nilフィールドは変更せず、既存の値を維持する。ClearExpiresAtは有効期限をNULLにする。
func (r *PostgresContractRepo) UpdateFields(ctx context.Context, id string, update ContractUpdate) error {
	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}

	if update.Title != nil {
		args = append(args, *update.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.Content != nil {
		args = append(args, *update.Content)
		sets = append(sets, fmt.Sprintf("content = $%d", len(args)))
	}
	if update.ClearExpiresAt {
		sets = append(sets, "expires_at = NULL")
	} else if update.ExpiresAt != nil {
		args = append(args, *update.ExpiresAt)
		sets = append(sets, fmt.Sprintf("expires_at = $%d", len(args)))
	}

	query := "UPDATE contracts SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("契約書の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("契約書が見つかりません: %s", id)
	}
	return nil
}

// CompleteIfPending はpending状態の契約書をcompletedへ遷移させる。
// 並行する完了チェックのうち、実際に行を更新できた1つだけがtrueを受け取る。
func (r *PostgresContractRepo) CompleteIfPending(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contracts
		 SET status = 'completed', completed_at = $2, updated_at = $2
		 WHERE id = $1 AND status = 'pending'`,
		id, completedAt,
	)
	if err != nil {
		return false, fmt.Errorf("completedへの遷移に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// CancelIfPending はpending状態の契約書をcanceledへ遷移させる。
func (r *PostgresContractRepo) CancelIfPending(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contracts
		 SET status = 'canceled', updated_at = $2
		 WHERE id = $1 AND status = 'pending'`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("canceledへの遷移に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// ExpireDue は有効期限を過ぎたpending契約書をexpiredへ遷移させ、対象IDを返す。
// ステータス条件付きのUPDATEなので、ワーカーの多重起動でも二重遷移しない。
func (r *PostgresContractRepo) ExpireDue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE contracts
		 SET status = 'expired', updated_at = $1
		 WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
		 RETURNING id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("期限切れ遷移に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("期限切れ対象の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("期限切れ対象の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// DeleteByID は指定IDの契約書を削除する。
// 受信者・署名・監査ログはCASCADE削除される。
func (r *PostgresContractRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM contracts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("契約書の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("契約書が見つかりません: %s", id)
	}
	return nil
}

// DeleteByOwner はオーナーの全契約書を削除する。退会処理用。
func (r *PostgresContractRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM contracts WHERE user_id = $1`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("オーナーの契約書削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ContractRepository = (*PostgresContractRepo)(nil)
