package security

import "testing"

func TestHashPasswordRequiresMinimumLength(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestHashPasswordAndVerify(t *testing.T) {
	password := "correct-horse"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(password, hash) {
		t.Fatalf("expected password verification to succeed")
	}
	if VerifyPassword("wrong-password", hash) {
		t.Fatalf("expected wrong password verification to fail")
	}
	if VerifyPassword(password, "") {
		t.Fatalf("expected empty hash to fail")
	}
}

func TestNewTokenIsRandom(t *testing.T) {
	a, err := NewToken(32)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	b, _ := NewToken(32)
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
	if len(a) != 43 {
		t.Fatalf("expected 43 chars, got %d", len(a))
	}
	if !TokensEqual(a, a) || TokensEqual(a, b) || TokensEqual("", "") {
		t.Fatalf("unexpected token comparison result")
	}
}
