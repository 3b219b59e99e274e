package contract

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/pactman/internal/audit"
	"github.com/hitoshi/pactman/internal/database"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/repository"
	"github.com/hitoshi/pactman/internal/security"
)

// setupIntegrationDB はPostgreSQLコンテナを起動し、マイグレーションを適用した*sql.DBを返す。
// TEST_INTEGRATION未設定時はスキップする。
func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("統合テストをスキップ: TEST_INTEGRATION が未設定")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:16-alpine",
		postgres.WithDatabase("pactman_test"),
		postgres.WithUsername("pactman"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("PostgreSQLコンテナの起動に失敗: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("コンテナの停止に失敗: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("コンテナの接続文字列の取得に失敗: %v", err)
	}

	if err := database.RunMigrations(connString); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(connString)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// TestIntegration_ConcurrentCompletion は最終署名が同時に2件届いた状況を再現し、
// 並行するCheckCompletionの両方がcompletedを報告しつつ、completedの
// 監査エントリは1件だけ追記されることを検証する。
func TestIntegration_ConcurrentCompletion(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	contractRepo := repository.NewPostgresContractRepo(db)
	recipientRepo := repository.NewPostgresRecipientRepo(db)
	signatureRepo := repository.NewPostgresSignatureRepo(db)
	auditRepo := repository.NewPostgresAuditLogRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)

	now := time.Now()
	userID := uuid.NewString()
	err := userRepo.CreateWithIdentity(ctx,
		&model.User{
			ID: userID, Email: "owner@example.com", Name: "一川仁",
			Company: "株式会社パクトマン", CreatedAt: now, UpdatedAt: now,
		},
		&model.Identity{
			ID: uuid.NewString(), UserID: userID,
			Provider: "google", ProviderUserID: "google-" + userID,
			CreatedAt: now,
		},
	)
	if err != nil {
		t.Fatalf("テストユーザーの作成に失敗: %v", err)
	}

	contractID := uuid.NewString()
	err = contractRepo.Create(ctx, &model.Contract{
		ID: contractID, UserID: userID, Title: "完了競合テスト",
		Content: "<p>本文</p>", Status: model.ContractStatusDraft,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("契約書の作成に失敗: %v", err)
	}

	recipients := []*model.Recipient{
		{
			ID: uuid.NewString(), ContractID: contractID,
			Name: "田中太郎", Email: "tanaka@example.com",
			Role: model.RecipientRoleSigner, Ordinal: 1,
			Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), ContractID: contractID,
			Name: "鈴木花子", Email: "suzuki@example.com",
			Role: model.RecipientRoleSigner, Ordinal: 2,
			Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
			CreatedAt: now, UpdatedAt: now,
		},
	}
	ok, err := recipientRepo.CreateBatchForSend(ctx, recipients, contractID, nil)
	if err != nil || !ok {
		t.Fatalf("送信に失敗: ok=%v err=%v", ok, err)
	}

	for _, rec := range recipients {
		if _, err := recipientRepo.MarkSignedIfUnsigned(ctx, rec.ID, time.Now()); err != nil {
			t.Fatalf("署名マークに失敗: %v", err)
		}
	}

	svc := NewService(contractRepo, recipientRepo, signatureRepo, auditRepo,
		audit.NewService(auditRepo), security.NewContentSanitizer())

	// 最終署名を処理した2つのリクエストが同時に完了チェックを走らせる
	results := make([]bool, 2)
	errs := make([]error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.CheckCompletion(ctx, contractID, "203.0.113.1", "test-agent")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("CheckCompletion %d に失敗: %v", i, errs[i])
		}
		if !results[i] {
			t.Errorf("CheckCompletion %d = false, want true", i)
		}
	}

	final, err := contractRepo.FindByID(ctx, contractID)
	if err != nil {
		t.Fatalf("FindByID に失敗: %v", err)
	}
	if final.Status != model.ContractStatusCompleted {
		t.Errorf("Status = %q, want %q", final.Status, model.ContractStatusCompleted)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt が設定されていること")
	}

	entries, err := auditRepo.ListByContract(ctx, contractID, false)
	if err != nil {
		t.Fatalf("監査ログの取得に失敗: %v", err)
	}
	completedEntries := 0
	for _, entry := range entries {
		if entry.Action == model.AuditActionCompleted {
			completedEntries++
		}
	}
	if completedEntries != 1 {
		t.Errorf("completedエントリ数 = %d, want 1", completedEntries)
	}
}
