package common

import (
	"regexp"
	"testing"
)

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(16)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("want 32 hex chars, got %d", len(s))
	}
	if !regexp.MustCompile(`^[0-9a-f]+$`).MatchString(s) {
		t.Fatalf("not a hex string: %q", s)
	}

	other, err := MakeRandHexString(16)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if s == other {
		t.Fatalf("two random strings must differ")
	}
}

func TestMakeConfirmationCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 100; i++ {
		code, err := MakeConfirmationCode()
		if err != nil {
			t.Fatalf("MakeConfirmationCode error: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("want 6 digits, got %q", code)
		}
	}
}
