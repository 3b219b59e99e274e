package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/pactman/internal/database"
	"github.com/hitoshi/pactman/internal/model"
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

	if err := db.Ping(); err != nil {
		t.Fatalf("データベースへのPingに失敗: %v", err)
	}

	return db
}

// createTestUser はテスト用のユーザーとidentityを作成してユーザーIDを返す。
func createTestUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()

	userRepo := NewPostgresUserRepo(db)
	userID := uuid.NewString()
	now := time.Now()

	err := userRepo.CreateWithIdentity(context.Background(),
		&model.User{
			ID:        userID,
			Email:     email,
			Name:      "一川仁",
			Company:   "株式会社パクトマン",
			CreatedAt: now,
			UpdatedAt: now,
		},
		&model.Identity{
			ID:             uuid.NewString(),
			UserID:         userID,
			Provider:       "google",
			ProviderUserID: "google-" + userID,
			CreatedAt:      now,
		},
	)
	if err != nil {
		t.Fatalf("テストユーザーの作成に失敗: %v", err)
	}
	return userID
}

func TestIntegration_ContractLifecycle(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	contractRepo := NewPostgresContractRepo(db)
	recipientRepo := NewPostgresRecipientRepo(db)
	signatureRepo := NewPostgresSignatureRepo(db)
	auditRepo := NewPostgresAuditLogRepo(db)

	userID := createTestUser(t, db, "owner@example.com")
	now := time.Now()

	// 契約書の作成（draft）
	contractID := uuid.NewString()
	err := contractRepo.Create(ctx, &model.Contract{
		ID:        contractID,
		UserID:    userID,
		Title:     "業務委託契約書",
		Content:   "<p>本契約は業務委託について定める。</p>",
		Status:    model.ContractStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("契約書の作成に失敗: %v", err)
	}

	// オーナー条件付き取得
	found, err := contractRepo.FindByIDAndOwner(ctx, contractID, userID)
	if err != nil {
		t.Fatalf("FindByIDAndOwner に失敗: %v", err)
	}
	if found == nil || found.Title != "業務委託契約書" {
		t.Fatalf("FindByIDAndOwner = %+v, want title 業務委託契約書", found)
	}

	// 他オーナーからは見えないこと
	otherID := createTestUser(t, db, "other@example.com")
	notFound, err := contractRepo.FindByIDAndOwner(ctx, contractID, otherID)
	if err != nil {
		t.Fatalf("FindByIDAndOwner(他オーナー) に失敗: %v", err)
	}
	if notFound != nil {
		t.Error("他オーナーからは契約書が見えないこと")
	}

	// 部分更新
	newTitle := "業務委託契約書（改訂版）"
	if err := contractRepo.UpdateFields(ctx, contractID, ContractUpdate{Title: &newTitle}); err != nil {
		t.Fatalf("UpdateFields に失敗: %v", err)
	}
	updated, err := contractRepo.FindByID(ctx, contractID)
	if err != nil {
		t.Fatalf("FindByID に失敗: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("updated.Title = %q, want %q", updated.Title, newTitle)
	}
	if updated.Content != "<p>本契約は業務委託について定める。</p>" {
		t.Error("未指定のcontentは変更されないこと")
	}

	// 送信: draft→pending遷移と受信者の一括作成が同一トランザクションで行われる
	r1 := &model.Recipient{
		ID: uuid.NewString(), ContractID: contractID,
		Name: "田中太郎", Email: "tanaka@example.com",
		Role: model.RecipientRoleSigner, Ordinal: 1,
		Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
		CreatedAt: now, UpdatedAt: now,
	}
	r2 := &model.Recipient{
		ID: uuid.NewString(), ContractID: contractID,
		Name: "鈴木花子", Email: "suzuki@example.com",
		Role: model.RecipientRoleSigner, Ordinal: 2,
		Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
		CreatedAt: now, UpdatedAt: now,
	}
	expiresAt := now.Add(72 * time.Hour)
	ok, err := recipientRepo.CreateBatchForSend(ctx, []*model.Recipient{r1, r2}, contractID, &expiresAt)
	if err != nil {
		t.Fatalf("CreateBatchForSend に失敗: %v", err)
	}
	if !ok {
		t.Fatal("draft契約書への送信はtrueを返すこと")
	}

	// 既にpendingのため2回目の送信は遷移できず、受信者を1件も作成しない
	late := &model.Recipient{
		ID: uuid.NewString(), ContractID: contractID,
		Name: "佐藤次郎", Email: "sato@example.com",
		Role: model.RecipientRoleSigner, Ordinal: 1,
		Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
		CreatedAt: now, UpdatedAt: now,
	}
	ok, err = recipientRepo.CreateBatchForSend(ctx, []*model.Recipient{late}, contractID, nil)
	if err != nil {
		t.Fatalf("CreateBatchForSend(2回目) に失敗: %v", err)
	}
	if ok {
		t.Error("pending契約書への再送信はfalseを返すこと")
	}
	var recCount int
	if err := db.QueryRow("SELECT count(*) FROM recipients WHERE contract_id = $1", contractID).Scan(&recCount); err != nil {
		t.Fatalf("受信者カウント取得に失敗: %v", err)
	}
	if recCount != 2 {
		t.Errorf("負けた送信の後の受信者数 = %d, want 2", recCount)
	}

	// アクセストークンによる検索
	byToken, err := recipientRepo.FindByAccessToken(ctx, r1.AccessToken)
	if err != nil {
		t.Fatalf("FindByAccessToken に失敗: %v", err)
	}
	if byToken == nil || byToken.ID != r1.ID {
		t.Fatalf("FindByAccessToken = %+v, want recipient %s", byToken, r1.ID)
	}

	// 閲覧マーク: 初回のみtrue
	ok, err = recipientRepo.MarkViewedIfUnviewed(ctx, r1.ID, time.Now())
	if err != nil {
		t.Fatalf("MarkViewedIfUnviewed に失敗: %v", err)
	}
	if !ok {
		t.Error("初回の閲覧マークはtrueを返すこと")
	}
	ok, err = recipientRepo.MarkViewedIfUnviewed(ctx, r1.ID, time.Now())
	if err != nil {
		t.Fatalf("MarkViewedIfUnviewed(2回目) に失敗: %v", err)
	}
	if ok {
		t.Error("2回目の閲覧マークはfalseを返すこと")
	}

	// 署名マークと署名の作成
	ok, err = recipientRepo.MarkSignedIfUnsigned(ctx, r1.ID, time.Now())
	if err != nil {
		t.Fatalf("MarkSignedIfUnsigned に失敗: %v", err)
	}
	if !ok {
		t.Error("未署名の受信者の署名マークはtrueを返すこと")
	}

	err = signatureRepo.Create(ctx, &model.Signature{
		ID: uuid.NewString(), ContractID: contractID, RecipientID: r1.ID,
		Method: model.SignatureMethodDraw, Data: "data:image/png;base64,abc",
		IPAddress: "203.0.113.7", UserAgent: "test-agent",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("署名の作成に失敗: %v", err)
	}

	// 同一受信者の二重署名は一意制約によりALREADY_SIGNEDになる
	err = signatureRepo.Create(ctx, &model.Signature{
		ID: uuid.NewString(), ContractID: contractID, RecipientID: r1.ID,
		Method: model.SignatureMethodType, Data: "data:image/png;base64,def",
		CreatedAt: time.Now(),
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAlreadySigned {
		t.Errorf("二重署名のエラー = %v, want ALREADY_SIGNED", err)
	}

	// 一覧の受信者数・署名数
	list, err := contractRepo.ListByOwner(ctx, userID)
	if err != nil {
		t.Fatalf("ListByOwner に失敗: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	if list[0].RecipientCount != 2 {
		t.Errorf("RecipientCount = %d, want 2", list[0].RecipientCount)
	}
	if list[0].SignedCount != 1 {
		t.Errorf("SignedCount = %d, want 1", list[0].SignedCount)
	}

	// pending→completed遷移は1回だけ成功する
	ok, err = contractRepo.CompleteIfPending(ctx, contractID, time.Now())
	if err != nil {
		t.Fatalf("CompleteIfPending に失敗: %v", err)
	}
	if !ok {
		t.Fatal("pending契約書の完了遷移はtrueを返すこと")
	}
	ok, err = contractRepo.CompleteIfPending(ctx, contractID, time.Now())
	if err != nil {
		t.Fatalf("CompleteIfPending(2回目) に失敗: %v", err)
	}
	if ok {
		t.Error("completed契約書の再完了はfalseを返すこと")
	}

	// 監査ログの追記と並び順
	appendAudit := func(action model.AuditAction, details model.AuditDetails) {
		t.Helper()
		if err := auditRepo.Create(ctx, &model.AuditLogEntry{
			ID: uuid.NewString(), ContractID: contractID, UserID: userID,
			Action: action, Details: details, CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("監査エントリの追記に失敗: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	appendAudit(model.AuditActionCreated, model.CreatedDetails{})
	appendAudit(model.AuditActionSent, model.SentDetails{RecipientEmails: []string{"tanaka@example.com", "suzuki@example.com"}})
	appendAudit(model.AuditActionCompleted, model.CompletedDetails{RecipientCount: 2})

	entries, err := auditRepo.ListByContract(ctx, contractID, true)
	if err != nil {
		t.Fatalf("ListByContract に失敗: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Action != model.AuditActionCompleted {
		t.Errorf("降順の先頭 = %q, want completed", entries[0].Action)
	}
	sent, okDetails := entries[1].Details.(*model.SentDetails)
	if !okDetails {
		t.Fatalf("entries[1].Details の型 = %T, want *model.SentDetails", entries[1].Details)
	}
	if len(sent.RecipientEmails) != 2 {
		t.Errorf("len(sent.RecipientEmails) = %d, want 2", len(sent.RecipientEmails))
	}

	// 退会時の一括削除: 受信者・署名・監査ログがCASCADE削除される
	if err := contractRepo.DeleteByOwner(ctx, userID); err != nil {
		t.Fatalf("DeleteByOwner に失敗: %v", err)
	}
	gone, err := contractRepo.FindByID(ctx, contractID)
	if err != nil {
		t.Fatalf("削除後のFindByID に失敗: %v", err)
	}
	if gone != nil {
		t.Error("削除後の契約書はnilであること")
	}
	var sigCount int
	if err := db.QueryRow("SELECT count(*) FROM signatures").Scan(&sigCount); err != nil {
		t.Fatalf("署名カウント取得に失敗: %v", err)
	}
	if sigCount != 0 {
		t.Errorf("CASCADE削除後の署名数 = %d, want 0", sigCount)
	}
}

// TestIntegration_ConcurrentSend は同一のdraft契約書への並行送信のうち
// 1つだけが受信者を作成し、負けた側は1件も残さないことを検証する。
func TestIntegration_ConcurrentSend(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	contractRepo := NewPostgresContractRepo(db)
	recipientRepo := NewPostgresRecipientRepo(db)
	userID := createTestUser(t, db, "race-owner@example.com")
	now := time.Now()

	contractID := uuid.NewString()
	if err := contractRepo.Create(ctx, &model.Contract{
		ID: contractID, UserID: userID, Title: "送信競合テスト", Content: "<p>本文</p>",
		Status: model.ContractStatusDraft, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("契約書の作成に失敗: %v", err)
	}

	newBatch := func(size int) []*model.Recipient {
		batch := make([]*model.Recipient, size)
		for i := range batch {
			batch[i] = &model.Recipient{
				ID: uuid.NewString(), ContractID: contractID,
				Name: "受信者", Email: uuid.NewString() + "@example.com",
				Role: model.RecipientRoleSigner, Ordinal: i + 1,
				Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
				CreatedAt: now, UpdatedAt: now,
			}
		}
		return batch
	}

	// 2件の送信が同時に走る。受信者数の異なるバッチで勝者を判別する
	batches := [][]*model.Recipient{newBatch(2), newBatch(3)}
	results := make([]bool, 2)
	errs := make([]error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range batches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = recipientRepo.CreateBatchForSend(ctx, batches[i], contractID, nil)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("送信%d に失敗: %v", i, err)
		}
	}
	if results[0] == results[1] {
		t.Fatalf("並行送信の結果 = %v, want 勝者1つ", results)
	}

	want := 2
	if results[1] {
		want = 3
	}
	var count int
	if err := db.QueryRow("SELECT count(*) FROM recipients WHERE contract_id = $1", contractID).Scan(&count); err != nil {
		t.Fatalf("受信者カウント取得に失敗: %v", err)
	}
	if count != want {
		t.Errorf("受信者数 = %d, want %d (勝った送信のバッチのみ)", count, want)
	}
}

func TestIntegration_ExpireDue(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	contractRepo := NewPostgresContractRepo(db)
	recipientRepo := NewPostgresRecipientRepo(db)
	userID := createTestUser(t, db, "expire-owner@example.com")
	now := time.Now()

	newContract := func(status model.ContractStatus, expiresAt *time.Time) string {
		t.Helper()
		id := uuid.NewString()
		if err := contractRepo.Create(ctx, &model.Contract{
			ID: id, UserID: userID, Title: "期限テスト", Content: "<p>本文</p>",
			Status: model.ContractStatusDraft, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("契約書の作成に失敗: %v", err)
		}
		if status == model.ContractStatusPending {
			rec := &model.Recipient{
				ID: uuid.NewString(), ContractID: id,
				Name: "田中太郎", Email: id + "@example.com",
				Role: model.RecipientRoleSigner, Ordinal: 1,
				Status: model.RecipientStatusSent, AccessToken: uuid.NewString(),
				CreatedAt: now, UpdatedAt: now,
			}
			if _, err := recipientRepo.CreateBatchForSend(ctx, []*model.Recipient{rec}, id, expiresAt); err != nil {
				t.Fatalf("pending遷移に失敗: %v", err)
			}
		}
		return id
	}

	past := now.Add(-1 * time.Hour)
	future := now.Add(24 * time.Hour)

	expiredID := newContract(model.ContractStatusPending, &past)
	activeID := newContract(model.ContractStatusPending, &future)
	noDeadlineID := newContract(model.ContractStatusPending, nil)
	draftID := newContract(model.ContractStatusDraft, nil)

	ids, err := contractRepo.ExpireDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpireDue に失敗: %v", err)
	}
	if len(ids) != 1 || ids[0] != expiredID {
		t.Fatalf("ExpireDue = %v, want [%s]", ids, expiredID)
	}

	assertStatus := func(id string, want model.ContractStatus) {
		t.Helper()
		c, err := contractRepo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID に失敗: %v", err)
		}
		if c.Status != want {
			t.Errorf("contract %s status = %q, want %q", id, c.Status, want)
		}
	}
	assertStatus(expiredID, model.ContractStatusExpired)
	assertStatus(activeID, model.ContractStatusPending)
	assertStatus(noDeadlineID, model.ContractStatusPending)
	assertStatus(draftID, model.ContractStatusDraft)

	// 2回目のスイープは何も返さない（冪等）
	ids, err = contractRepo.ExpireDue(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpireDue(2回目) に失敗: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("2回目のExpireDue = %v, want []", ids)
	}
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	sessionRepo := NewPostgresSessionRepo(db)
	userID := createTestUser(t, db, "session-owner@example.com")
	now := time.Now()

	// 有効なセッション
	valid := &model.Session{
		ID: uuid.NewString(), UserID: userID,
		ExpiresAt: now.Add(24 * time.Hour), CreatedAt: now,
	}
	if err := sessionRepo.Create(ctx, valid); err != nil {
		t.Fatalf("セッションの作成に失敗: %v", err)
	}
	found, err := sessionRepo.FindByID(ctx, valid.ID)
	if err != nil {
		t.Fatalf("FindByID に失敗: %v", err)
	}
	if found == nil || found.UserID != userID {
		t.Fatalf("FindByID = %+v, want session for %s", found, userID)
	}

	// 期限切れセッションはnilを返す
	expired := &model.Session{
		ID: uuid.NewString(), UserID: userID,
		ExpiresAt: now.Add(-1 * time.Hour), CreatedAt: now.Add(-25 * time.Hour),
	}
	if err := sessionRepo.Create(ctx, expired); err != nil {
		t.Fatalf("期限切れセッションの作成に失敗: %v", err)
	}
	gone, err := sessionRepo.FindByID(ctx, expired.ID)
	if err != nil {
		t.Fatalf("FindByID(期限切れ) に失敗: %v", err)
	}
	if gone != nil {
		t.Error("期限切れセッションはnilを返すこと")
	}

	// ユーザー単位の一括削除
	if err := sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		t.Fatalf("DeleteByUserID に失敗: %v", err)
	}
	afterDelete, err := sessionRepo.FindByID(ctx, valid.ID)
	if err != nil {
		t.Fatalf("削除後のFindByID に失敗: %v", err)
	}
	if afterDelete != nil {
		t.Error("削除後のセッションはnilであること")
	}
}
