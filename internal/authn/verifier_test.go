package authn_test

import (
	"testing"

	"github.com/salesagentco/platform/internal/authn"
)

func TestVerifier_DevMode(t *testing.T) {
	v, err := authn.NewVerifier(authn.Config{DevMode: true, DevCallerID: "owner-123"})
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	claims, err := v.Verify("")
	if err != nil {
		t.Fatalf("Verify() error in dev mode: %v", err)
	}
	if claims.OwnerID != "owner-123" {
		t.Errorf("OwnerID: got %q, want owner-123", claims.OwnerID)
	}
}

func TestVerifier_RequiresCredentialsOutsideDevMode(t *testing.T) {
	_, err := authn.NewVerifier(authn.Config{})
	if err == nil {
		t.Error("expected error when no credentials path and not dev mode")
	}
}

func TestVerifier_RejectsEmptyToken(t *testing.T) {
	v, err := authn.NewVerifier(authn.Config{CredentialsPath: writeTempKey(t)})
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}
	if _, err := v.Verify(""); err == nil {
		t.Error("expected error for empty token")
	}
}
