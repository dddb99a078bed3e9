package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSignPayload(t *testing.T) {
	body := []byte(`{"type":"lead.qualified"}`)
	secret := "test-secret"

	sig := signPayload(body, secret)
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("signature %q missing sha256= prefix", sig)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if sig != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}
}

func TestSignPayload_differentSecretsDiffer(t *testing.T) {
	body := []byte(`{"type":"training.completed"}`)
	a := signPayload(body, "secret-a")
	b := signPayload(body, "secret-b")
	if a == b {
		t.Error("expected different secrets to produce different signatures")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := generateSecret()
	if err != nil {
		t.Fatalf("generateSecret: %v", err)
	}
	b, err := generateSecret()
	if err != nil {
		t.Fatalf("generateSecret: %v", err)
	}
	if len(a) != 64 { // 32 bytes hex-encoded
		t.Errorf("len(secret) = %d, want 64", len(a))
	}
	if a == b {
		t.Error("expected two generated secrets to differ")
	}
}

func TestDoDelivery_sendsSignatureHeaderAndReportsSuccess(t *testing.T) {
	var gotSig, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf) //nolint:errcheck
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewService(nil, zap.NewNop())
	body := []byte(`{"type":"lead.qualified"}`)
	sig := signPayload(body, "shh")

	success, status, errMsg := s.doDelivery(context.Background(), srv.URL, body, sig)
	if !success {
		t.Fatalf("expected success, got error %q (status %d)", errMsg, status)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if gotSig != sig {
		t.Errorf("received signature = %q, want %q", gotSig, sig)
	}
	if gotBody != string(body) {
		t.Errorf("received body = %q, want %q", gotBody, string(body))
	}
}

func TestDoDelivery_nonSuccessStatusReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService(nil, zap.NewNop())
	success, status, errMsg := s.doDelivery(context.Background(), srv.URL, []byte(`{}`), "sha256=x")
	if success {
		t.Fatal("expected failure for a 500 response")
	}
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if errMsg == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestDoDelivery_unreachableURLReportsFailure(t *testing.T) {
	s := NewService(nil, zap.NewNop())
	success, status, errMsg := s.doDelivery(context.Background(), "http://127.0.0.1:0", []byte(`{}`), "sha256=x")
	if success {
		t.Fatal("expected failure for an unreachable endpoint")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if errMsg == "" {
		t.Error("expected a non-empty error message")
	}
}
