package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pactman/internal/model"
)

// PostgresRecipientRepo はPostgreSQLを使用した受信者リポジトリ。
type PostgresRecipientRepo struct {
	db *sql.DB
}

// NewPostgresRecipientRepo はPostgresRecipientRepoを生成する。
func NewPostgresRecipientRepo(db *sql.DB) *PostgresRecipientRepo {
	return &PostgresRecipientRepo{db: db}
}

const recipientColumns = `id, contract_id, name, email, role, ordinal, status, access_token, viewed_at, signed_at, created_at, updated_at`

// scanRecipient は1行を*model.Recipientに変換する。
func scanRecipient(row interface{ Scan(...any) error }) (*model.Recipient, error) {
	rec := &model.Recipient{}
	var viewedAt, signedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.ContractID, &rec.Name, &rec.Email, &rec.Role, &rec.Ordinal,
		&rec.Status, &rec.AccessToken, &viewedAt, &signedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if viewedAt.Valid {
		t := viewedAt.Time
		rec.ViewedAt = &t
	}
	if signedAt.Valid {
		t := signedAt.Time
		rec.SignedAt = &t
	}
	return rec, nil
}

// FindByID は指定IDの受信者を取得する。見つからない場合はnilを返す。
func (r *PostgresRecipientRepo) FindByID(ctx context.Context, id string) (*model.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("受信者の取得に失敗しました: %w", err)
	}
	return rec, nil
}

// FindByAccessToken はアクセストークンで受信者を検索する。見つからない場合はnilを返す。
func (r *PostgresRecipientRepo) FindByAccessToken(ctx context.Context, token string) (*model.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE access_token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクセストークンによる受信者の取得に失敗しました: %w", err)
	}
	return rec, nil
}

// ListByContract は契約書の受信者一覧をordinal昇順で返す。
func (r *PostgresRecipientRepo) ListByContract(ctx context.Context, contractID string) ([]*model.Recipient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE contract_id = $1 ORDER BY ordinal ASC`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("受信者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var recipients []*model.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("受信者一覧の読み取りに失敗しました: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("受信者一覧の走査に失敗しました: %w", err)
	}
	return recipients, nil
}

// CreateBatchForSend は契約書のdraft→pending遷移と受信者の一括作成を
// 同一トランザクションで行う。遷移のstatus = 'draft'条件付きUPDATEが
// 先に実行されるため、並行する送信のうち遷移できた1つだけが受信者を
// 作成しtrueを受け取る。負けた側は1件も作成せずfalseを受け取る。
func (r *PostgresRecipientRepo) CreateBatchForSend(ctx context.Context, recipients []*model.Recipient, contractID string, expiresAt *time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE contracts
		 SET status = 'pending', expires_at = COALESCE($2, expires_at), updated_at = $3
		 WHERE id = $1 AND status = 'draft'`,
		contractID, expiresAt, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("pendingへの遷移に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	for _, rec := range recipients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recipients (id, contract_id, name, email, role, ordinal, status, access_token, viewed_at, signed_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rec.ID, rec.ContractID, rec.Name, rec.Email, rec.Role, rec.Ordinal,
			rec.Status, rec.AccessToken, rec.ViewedAt, rec.SignedAt,
			rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("受信者の作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return true, nil
}

// MarkViewedIfUnviewed はviewed_atが未設定の場合のみ閲覧済みにする。
// viewed_at IS NULLを条件とする比較更新のため、同時重複呼び出しでは
// 最初の1回だけが行を更新しtrueを返す。署名済みのステータスは上書きしない。
func (r *PostgresRecipientRepo) MarkViewedIfUnviewed(ctx context.Context, id string, viewedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipients
		 SET viewed_at = $2,
		     status = CASE WHEN status = 'sent' THEN 'viewed' ELSE status END,
		     updated_at = $2
		 WHERE id = $1 AND viewed_at IS NULL`,
		id, viewedAt,
	)
	if err != nil {
		return false, fmt.Errorf("閲覧状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkSignedIfUnsigned はstatusがsignedでない場合のみ署名済みにする。
// 同時重複呼び出しでは最初の1回だけが行を更新しtrueを返す。
func (r *PostgresRecipientRepo) MarkSignedIfUnsigned(ctx context.Context, id string, signedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipients
		 SET status = 'signed', signed_at = $2, updated_at = $2
		 WHERE id = $1 AND status <> 'signed'`,
		id, signedAt,
	)
	if err != nil {
		return false, fmt.Errorf("署名状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ RecipientRepository = (*PostgresRecipientRepo)(nil)
