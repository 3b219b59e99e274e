package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/pactman/internal/model"
)

// PostgresAuditLogRepo はPostgreSQLを使用した監査ログリポジトリ。
// 追記専用であり、UPDATE文・個別DELETE文は存在しない。
// エントリは契約書のCASCADE削除によってのみ消える。
type PostgresAuditLogRepo struct {
	db *sql.DB
}

// NewPostgresAuditLogRepo はPostgresAuditLogRepoを生成する。
func NewPostgresAuditLogRepo(db *sql.DB) *PostgresAuditLogRepo {
	return &PostgresAuditLogRepo{db: db}
}

// Create は監査エントリを追記する。
// 各INSERTは独立しており、並行書き込みに相互排他は不要。
// 順序はcreated_atから導出するためカウンタの調整も行わない。
func (r *PostgresAuditLogRepo) Create(ctx context.Context, entry *model.AuditLogEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("監査詳細のエンコードに失敗しました: %w", err)
	}

	var userID any
	if entry.UserID != "" {
		userID = entry.UserID
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, contract_id, user_id, action, details, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ContractID, userID, entry.Action, details,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("監査エントリの追記に失敗しました: %w", err)
	}
	return nil
}

// ListByContract は契約書の監査エントリを返す。
// descendingがtrueの場合は作成日時降順（表示用）、falseの場合は昇順（論理順）。
func (r *PostgresAuditLogRepo) ListByContract(ctx context.Context, contractID string, descending bool) ([]*model.AuditLogEntry, error) {
	order := "ASC"
	if descending {
		order = "DESC"
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, contract_id, user_id, action, details, ip_address, user_agent, created_at
		 FROM audit_logs WHERE contract_id = $1 ORDER BY created_at `+order,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("監査ログの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditLogEntry
	for rows.Next() {
		entry := &model.AuditLogEntry{}
		var userID, ipAddress, userAgent sql.NullString
		var details []byte

		err := rows.Scan(
			&entry.ID, &entry.ContractID, &userID, &entry.Action,
			&details, &ipAddress, &userAgent, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("監査ログの読み取りに失敗しました: %w", err)
		}

		if userID.Valid {
			entry.UserID = userID.String
		}
		if ipAddress.Valid {
			entry.IPAddress = ipAddress.String
		}
		if userAgent.Valid {
			entry.UserAgent = userAgent.String
		}

		decoded, err := model.DecodeAuditDetails(entry.Action, details)
		if err != nil {
			return nil, fmt.Errorf("監査詳細のデコードに失敗しました: %w", err)
		}
		entry.Details = decoded

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監査ログの走査に失敗しました: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ AuditLogRepository = (*PostgresAuditLogRepo)(nil)
