package hyperliquid

import (
	"strings"
	"testing"
)

const testPrivateKey = "0x1111111111111111111111111111111111111111111111111111111111111111"

func TestNewSignerDerivesAddress(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.Address().Hex() == "" {
		t.Fatal("expected non-empty address")
	}
	if _, ok := s.VaultAddress(); ok {
		t.Error("VaultAddress ok = true for direct account, want false")
	}
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	t.Parallel()
	if _, err := NewSigner("not-hex", ""); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestNewSignerWithVault(t *testing.T) {
	t.Parallel()
	vault := "0x2222222222222222222222222222222222222222"
	s, err := NewSigner(testPrivateKey, vault)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	addr, ok := s.VaultAddress()
	if !ok {
		t.Fatal("VaultAddress ok = false, want true")
	}
	if !strings.EqualFold(addr.Hex(), vault) {
		t.Errorf("vault address = %s, want %s", addr.Hex(), vault)
	}
}

func TestSignProducesRSVAndMatchingNonce(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	action := map[string]string{"type": "order"}
	signed, err := s.Sign(action, 1234)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if signed.Nonce != 1234 {
		t.Errorf("Nonce = %d, want 1234", signed.Nonce)
	}
	if signed.VaultAddress != nil {
		t.Error("VaultAddress should be nil for a direct (non-vault) account")
	}
	if !strings.HasPrefix(signed.Signature.R, "0x") || !strings.HasPrefix(signed.Signature.S, "0x") {
		t.Fatalf("signature r/s should be 0x-prefixed, got r=%q s=%q", signed.Signature.R, signed.Signature.S)
	}
	if signed.Signature.V != 27 && signed.Signature.V != 28 {
		t.Errorf("signature.V = %d, want 27 or 28", signed.Signature.V)
	}
}

func TestSignIsDeterministicPerNonce(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	action := map[string]string{"type": "cancel"}

	first, err := s.Sign(action, 99)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	second, err := s.Sign(action, 99)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first.Signature.R != second.Signature.R || first.Signature.S != second.Signature.S {
		t.Error("signing the same action+nonce twice should produce the same signature")
	}
}

func TestSignVaryingNonceChangesSignature(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(testPrivateKey, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	action := map[string]string{"type": "cancel"}

	a, err := s.Sign(action, 1)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	b, err := s.Sign(action, 2)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if a.Signature.R == b.Signature.R && a.Signature.S == b.Signature.S {
		t.Error("different nonces should produce different signatures")
	}
}

func TestSignWithVaultSetsVaultAddress(t *testing.T) {
	t.Parallel()
	vault := "0x3333333333333333333333333333333333333333"
	s, err := NewSigner(testPrivateKey, vault)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	signed, err := s.Sign(map[string]string{"type": "order"}, 1)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.VaultAddress == nil {
		t.Fatal("expected non-nil VaultAddress")
	}
	if !strings.EqualFold(*signed.VaultAddress, vault) {
		t.Errorf("VaultAddress = %s, want %s", *signed.VaultAddress, vault)
	}
}
