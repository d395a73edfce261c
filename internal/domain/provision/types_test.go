package provision

import (
	"strings"
	"testing"
)

func TestGeneratePasswordLengthAndAlphabet(t *testing.T) {
	pw, err := GeneratePassword()
	if err != nil {
		t.Fatalf("GeneratePassword() error = %v", err)
	}
	if len(pw) != passwordLength {
		t.Errorf("len(password) = %d, want %d", len(pw), passwordLength)
	}
	for _, r := range pw {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Errorf("password contains character %q outside the allowed alphabet", r)
		}
	}
}

func TestGeneratePasswordVaries(t *testing.T) {
	first, err := GeneratePassword()
	if err != nil {
		t.Fatalf("GeneratePassword() error = %v", err)
	}
	second, err := GeneratePassword()
	if err != nil {
		t.Fatalf("GeneratePassword() error = %v", err)
	}
	if first == second {
		t.Error("two consecutive GeneratePassword calls returned the same value; expected fresh randomness each call")
	}
}
