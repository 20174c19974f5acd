package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sign(t *testing.T, secret string, body []byte) string {
	t.Helper()
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("test payload is not JSON: %v", err)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h := NewWebhookHandler(nil, "topsecret")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(`{"direction":"USER_TO_ANCHOR"}`))
	rec := httptest.NewRecorder()

	h.HandleBankEvent(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewWebhookHandler(nil, "topsecret")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(`{"direction":"USER_TO_ANCHOR"}`))
	req.Header.Set(signatureHeader, "deadbeef")
	rec := httptest.NewRecorder()

	h.HandleBankEvent(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookAcceptsReorderedKeys(t *testing.T) {
	// The signature is over the canonical form, so semantically identical
	// payloads with different key order verify against the same MAC.
	h := NewWebhookHandler(nil, "topsecret")

	signedOver := []byte(`{"description":"invoice 42","direction":"USER_TO_ANCHOR"}`)
	delivered := `{"direction":"USER_TO_ANCHOR","description":"invoice 42"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(delivered))
	req.Header.Set(signatureHeader, sign(t, "topsecret", signedOver))
	rec := httptest.NewRecorder()

	h.HandleBankEvent(rec, req)
	// "invoice 42" carries no anchor_tx correlation: acknowledged, ignored.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ignored" {
		t.Errorf("status = %q, want ignored", resp["status"])
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	h := NewWebhookHandler(nil, "topsecret")
	body := `{"direction":"USER_TO_ANCHOR","description":"anchor_tx:tx-1"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(body))
	req.Header.Set(signatureHeader, sign(t, "othersecret", []byte(body)))
	rec := httptest.NewRecorder()

	h.HandleBankEvent(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
