package number

import (
	"errors"
	"testing"
)

func TestNormalizeVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "canonical passthrough", raw: "888123456789", want: "888123456789"},
		{name: "leading plus", raw: "+888123456789", want: "888123456789"},
		{name: "nine digit short form", raw: "987654321", want: "888987654321"},
		{name: "eight digit short form", raw: "87654321", want: "888087654321"},
		{name: "short form with plus", raw: "+987654321", want: "888987654321"},
		{name: "embedded separators", raw: "888 1234 56789", want: "888123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"abc",
		"12345",         // too short
		"88812345678",   // 11 digits, wrong length
		"1234567890123", // 13 digits
		"777123456789",  // 12 digits, wrong prefix
		"+",
	} {
		if _, err := Normalize(raw); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("Normalize(%q): expected ErrInvalidFormat, got %v", raw, err)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"888123456789", "987654321", "87654321"} {
		id, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", raw, err)
		}
		again, err := Normalize(id)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", id, err)
		}
		if again != id {
			t.Fatalf("not idempotent: %q -> %q", id, again)
		}
	}
}

func TestNormalizeBatch(t *testing.T) {
	t.Parallel()
	accepted, rejected := NormalizeBatch("+888123456789, 987654321 abc\n87654321")
	wantAccepted := []string{"888123456789", "888987654321", "888087654321"}
	if len(accepted) != len(wantAccepted) {
		t.Fatalf("accepted = %v, want %v", accepted, wantAccepted)
	}
	for i := range wantAccepted {
		if accepted[i] != wantAccepted[i] {
			t.Fatalf("accepted[%d] = %q, want %q", i, accepted[i], wantAccepted[i])
		}
	}
	if len(rejected) != 1 || rejected[0] != "abc" {
		t.Fatalf("rejected = %v, want [abc]", rejected)
	}
}

func TestValid(t *testing.T) {
	t.Parallel()
	if !Valid("888123456789") {
		t.Fatal("expected canonical id to be valid")
	}
	if Valid("987654321") {
		t.Fatal("short form is not canonical")
	}
}
