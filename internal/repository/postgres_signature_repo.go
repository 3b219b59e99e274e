package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/pactman/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresSignatureRepo はPostgreSQLを使用した署名リポジトリ。
// 署名は作成と読み取りのみで、UPDATE文は存在しない。
type PostgresSignatureRepo struct {
	db *sql.DB
}

// NewPostgresSignatureRepo はPostgresSignatureRepoを生成する。
func NewPostgresSignatureRepo(db *sql.DB) *PostgresSignatureRepo {
	return &PostgresSignatureRepo{db: db}
}

// Create は署名を作成する。
// recipient_idの一意制約が二重署名の最終防壁であり、制約違反は
// ストレージエラーとして漏らさずAlreadySignedエラーに変換する。
func (r *PostgresSignatureRepo) Create(ctx context.Context, signature *model.Signature) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signatures (id, contract_id, recipient_id, method, data, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		signature.ID, signature.ContractID, signature.RecipientID,
		signature.Method, signature.Data, signature.IPAddress, signature.UserAgent,
		signature.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.NewAlreadySignedError()
		}
		return fmt.Errorf("署名の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByRecipient は受信者の署名を取得する。見つからない場合はnilを返す。
func (r *PostgresSignatureRepo) FindByRecipient(ctx context.Context, recipientID string) (*model.Signature, error) {
	sig := &model.Signature{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, contract_id, recipient_id, method, data, ip_address, user_agent, created_at
		 FROM signatures WHERE recipient_id = $1`,
		recipientID,
	).Scan(
		&sig.ID, &sig.ContractID, &sig.RecipientID, &sig.Method,
		&sig.Data, &sig.IPAddress, &sig.UserAgent, &sig.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("署名の取得に失敗しました: %w", err)
	}
	return sig, nil
}

// ListByContract は契約書の署名一覧を作成日時昇順で返す。
func (r *PostgresSignatureRepo) ListByContract(ctx context.Context, contractID string) ([]*model.Signature, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, contract_id, recipient_id, method, data, ip_address, user_agent, created_at
		 FROM signatures WHERE contract_id = $1 ORDER BY created_at ASC`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("署名一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var signatures []*model.Signature
	for rows.Next() {
		sig := &model.Signature{}
		err := rows.Scan(
			&sig.ID, &sig.ContractID, &sig.RecipientID, &sig.Method,
			&sig.Data, &sig.IPAddress, &sig.UserAgent, &sig.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("署名一覧の読み取りに失敗しました: %w", err)
		}
		signatures = append(signatures, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("署名一覧の走査に失敗しました: %w", err)
	}
	return signatures, nil
}

// compile-time interface check
var _ SignatureRepository = (*PostgresSignatureRepo)(nil)
