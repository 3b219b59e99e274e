package model

import (
	"encoding/json"
	"testing"
)

// TestDecodeAuditDetails_Signed はsignedアクションの詳細が型付きでデコードされることを検証する。
func TestDecodeAuditDetails_Signed(t *testing.T) {
	raw, _ := json.Marshal(SignedDetails{
		RecipientEmail: "a@x.com",
		Method:         SignatureMethodDraw,
	})

	details, err := DecodeAuditDetails(AuditActionSigned, raw)
	if err != nil {
		t.Fatalf("DecodeAuditDetails returned error: %v", err)
	}

	signed, ok := details.(*SignedDetails)
	if !ok {
		t.Fatalf("expected *SignedDetails, got %T", details)
	}
	if signed.RecipientEmail != "a@x.com" {
		t.Errorf("RecipientEmail = %q, want %q", signed.RecipientEmail, "a@x.com")
	}
	if signed.Method != SignatureMethodDraw {
		t.Errorf("Method = %q, want draw", signed.Method)
	}
	if signed.AuditAction() != AuditActionSigned {
		t.Errorf("AuditAction() = %q, want signed", signed.AuditAction())
	}
}

// TestDecodeAuditDetails_EmptyPayload は空ペイロードがゼロ値の詳細にデコードされることを検証する。
func TestDecodeAuditDetails_EmptyPayload(t *testing.T) {
	details, err := DecodeAuditDetails(AuditActionCreated, nil)
	if err != nil {
		t.Fatalf("DecodeAuditDetails returned error: %v", err)
	}
	if _, ok := details.(*CreatedDetails); !ok {
		t.Fatalf("expected *CreatedDetails, got %T", details)
	}
}

// TestDecodeAuditDetails_UnknownAction は未知のアクションがエラーになることを検証する。
func TestDecodeAuditDetails_UnknownAction(t *testing.T) {
	if _, err := DecodeAuditDetails("reverted", []byte("{}")); err == nil {
		t.Fatal("expected error for unknown action, got nil")
	}
}
