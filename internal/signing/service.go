// Package signing は匿名の署名セッションゲートウェイを提供する。
//
// 受信者はログインせず、アクセストークンのみで契約書の閲覧と署名を行う。
// トークンが唯一の認可手段であるため、未知のトークンに対しては存在の手がかりを
// 与えない同一のエラーを返す。
package signing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/pactman/internal/model"
	"github.com/hitoshi/pactman/internal/repository"
)

// AuditAppender は監査エントリの追記インターフェース。
type AuditAppender interface {
	Append(ctx context.Context, contractID string, details model.AuditDetails, actorUserID, ipAddress, userAgent string) error
}

// CompletionChecker は全員署名時の完了遷移インターフェース。
// contract.Serviceの部分集合として定義する。
type CompletionChecker interface {
	CheckCompletion(ctx context.Context, contractID, ipAddress, userAgent string) (bool, error)
}

// ViewMarker は受信者の閲覧記録インターフェース。
// recipient.Serviceの部分集合として定義する。
type ViewMarker interface {
	MarkViewed(ctx context.Context, recipientID, ipAddress, userAgent string) error
}

// RosterEntry は署名画面に表示する共同署名者の1行。
// アクセストークンは他の受信者に漏らさないため含めない。
type RosterEntry struct {
	Name     string
	Email    string
	Ordinal  int
	Status   model.RecipientStatus
	SignedAt *time.Time
}

// View は署名画面の表示に必要な情報一式。
type View struct {
	ContractID    string
	Title         string
	Content       string
	Status        model.ContractStatus
	ExpiresAt     *time.Time
	SenderName    string
	SenderCompany string
	RecipientName string
	Roster        []RosterEntry
	HasSigned     bool
}

// SubmitParams は署名送信のパラメータ。
type SubmitParams struct {
	Method    model.SignatureMethod
	Data      string
	IPAddress string
	UserAgent string
}

// SubmitResult は署名送信の結果。
type SubmitResult struct {
	SignatureID string
	Completed   bool // この署名で契約書が完了したか
}

// Service は署名セッションのサービス層。
type Service struct {
	contractRepo   repository.ContractRepository
	recipientRepo  repository.RecipientRepository
	signatureRepo  repository.SignatureRepository
	userRepo       repository.UserRepository
	auditor        AuditAppender
	completion     CompletionChecker
	viewer         ViewMarker
	maxPayloadSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	contractRepo repository.ContractRepository,
	recipientRepo repository.RecipientRepository,
	signatureRepo repository.SignatureRepository,
	userRepo repository.UserRepository,
	auditor AuditAppender,
	completion CompletionChecker,
	viewer ViewMarker,
	maxPayloadSize int64,
) *Service {
	return &Service{
		contractRepo:   contractRepo,
		recipientRepo:  recipientRepo,
		signatureRepo:  signatureRepo,
		userRepo:       userRepo,
		auditor:        auditor,
		completion:     completion,
		viewer:         viewer,
		maxPayloadSize: maxPayloadSize,
	}
}

// resolveToken はアクセストークンから受信者と契約書を引き当てる。
// トークン未知・契約書欠落はいずれも同一のInvalidLinkエラーで返す。
func (s *Service) resolveToken(ctx context.Context, accessToken string) (*model.Recipient, *model.Contract, error) {
	if accessToken == "" {
		return nil, nil, model.NewInvalidLinkError()
	}

	recipient, err := s.recipientRepo.FindByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("受信者の検索に失敗しました: %w", err)
	}
	if recipient == nil {
		return nil, nil, model.NewInvalidLinkError()
	}

	contract, err := s.contractRepo.FindByID(ctx, recipient.ContractID)
	if err != nil {
		return nil, nil, fmt.Errorf("契約書の取得に失敗しました: %w", err)
	}
	if contract == nil {
		return nil, nil, model.NewInvalidLinkError()
	}

	return recipient, contract, nil
}

// LoadView はアクセストークンで署名画面の情報を取得する。
// 初回アクセスでは閲覧記録の副作用が発生し、viewedエントリが監査ログに残る。
// 期限切れ・取り消し済みの契約書にはContractClosedを返す。
func (s *Service) LoadView(ctx context.Context, accessToken, ipAddress, userAgent string) (*View, error) {
	recipient, contract, err := s.resolveToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if contract.Status.IsClosed() {
		return nil, model.NewContractClosedError(contract.Status)
	}

	if err := s.viewer.MarkViewed(ctx, recipient.ID, ipAddress, userAgent); err != nil {
		return nil, err
	}

	sender, err := s.userRepo.FindByID(ctx, contract.UserID)
	if err != nil {
		return nil, fmt.Errorf("送信者の取得に失敗しました: %w", err)
	}

	all, err := s.recipientRepo.ListByContract(ctx, contract.ID)
	if err != nil {
		return nil, fmt.Errorf("受信者一覧の取得に失敗しました: %w", err)
	}

	view := &View{
		ContractID:    contract.ID,
		Title:         contract.Title,
		Content:       contract.Content,
		Status:        contract.Status,
		ExpiresAt:     contract.ExpiresAt,
		RecipientName: recipient.Name,
		Roster:        make([]RosterEntry, len(all)),
		HasSigned:     recipient.HasSigned(),
	}
	if sender != nil {
		view.SenderName = sender.Name
		view.SenderCompany = sender.Company
	}
	for i, r := range all {
		view.Roster[i] = RosterEntry{
			Name:     r.Name,
			Email:    r.Email,
			Ordinal:  r.Ordinal,
			Status:   r.Status,
			SignedAt: r.SignedAt,
		}
	}

	return view, nil
}

// Submit は署名を記録する。受信者1人につき署名は1件のみで、2回目以降は
// AlreadySignedを返す。recipient_idの一意制約が競合時の最終防壁であり、
// 制約違反もAlreadySignedに変換される。全受信者の署名が揃うと契約書は
// completedへ遷移し、結果のCompletedで報告される。
func (s *Service) Submit(ctx context.Context, accessToken string, params SubmitParams) (*SubmitResult, error) {
	recipient, contract, err := s.resolveToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if contract.Status.IsClosed() {
		return nil, model.NewContractClosedError(contract.Status)
	}
	if recipient.HasSigned() {
		return nil, model.NewAlreadySignedError()
	}

	if !params.Method.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("未対応の署名方式です: %s", params.Method))
	}
	if params.Data == "" {
		return nil, model.NewValidationError("署名データは必須です")
	}
	if int64(len(params.Data)) > s.maxPayloadSize {
		return nil, model.NewValidationError("署名データが大きすぎます")
	}

	now := time.Now().UTC()
	signature := &model.Signature{
		ID:          uuid.New().String(),
		ContractID:  contract.ID,
		RecipientID: recipient.ID,
		Method:      params.Method,
		Data:        params.Data,
		IPAddress:   params.IPAddress,
		UserAgent:   params.UserAgent,
		CreatedAt:   now,
	}
	if err := s.signatureRepo.Create(ctx, signature); err != nil {
		// 一意制約違反はAlreadySignedとしてそのまま返る
		return nil, err
	}

	if _, err := s.recipientRepo.MarkSignedIfUnsigned(ctx, recipient.ID, now); err != nil {
		return nil, fmt.Errorf("署名状態の更新に失敗しました: %w", err)
	}

	if err := s.auditor.Append(ctx, contract.ID,
		model.SignedDetails{RecipientEmail: recipient.Email, Method: params.Method},
		"", params.IPAddress, params.UserAgent); err != nil {
		return nil, err
	}

	completed, err := s.completion.CheckCompletion(ctx, contract.ID, params.IPAddress, params.UserAgent)
	if err != nil {
		return nil, err
	}

	slog.Info("署名を記録しました",
		slog.String("contract_id", contract.ID),
		slog.String("recipient_id", recipient.ID),
		slog.String("method", string(params.Method)),
		slog.Bool("completed", completed),
	)

	return &SubmitResult{SignatureID: signature.ID, Completed: completed}, nil
}
