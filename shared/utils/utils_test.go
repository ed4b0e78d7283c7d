package utils

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("usr")
	if !ValidateUserID(id) {
		t.Fatalf("expected a valid user id, got %q", id)
	}
	if other := GenerateID("usr"); other == id {
		t.Errorf("expected distinct ids, got %q twice", id)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("longenough1", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(hash, "longenough1") {
		t.Fatal("hash must not contain the plaintext")
	}
	if !CheckPassword("longenough1", hash) {
		t.Error("expected password to match its hash")
	}
	if CheckPassword("different1", hash) {
		t.Error("expected a different password not to match")
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := map[string]string{
		"a@b.com":        "a@b.com",
		"  A@B.Com ":     "a@b.com",
		"MiXeD@Case.org": "mixed@case.org",
	}
	for in, want := range tests {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
