package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeContent(t *testing.T) {
	got, err := SanitizeContent("hello world")
	if err != nil {
		t.Fatalf("SanitizeContent() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("SanitizeContent() = %q, expected unchanged text", got)
	}
}

func TestSanitizeContent_StripsMarkup(t *testing.T) {
	got, err := SanitizeContent(`hi <script>alert("x")</script>there`)
	if err != nil {
		t.Fatalf("SanitizeContent() error = %v", err)
	}
	if strings.Contains(got, "<script>") || strings.Contains(got, "alert") {
		t.Errorf("markup survived sanitization: %q", got)
	}
}

func TestSanitizeContent_TrimsWhitespace(t *testing.T) {
	got, err := SanitizeContent("  padded  ")
	if err != nil {
		t.Fatalf("SanitizeContent() error = %v", err)
	}
	if got != "padded" {
		t.Errorf("SanitizeContent() = %q, expected %q", got, "padded")
	}
}

func TestSanitizeContent_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "<b></b>"} {
		if _, err := SanitizeContent(in); !errors.Is(err, ErrContentEmpty) {
			t.Errorf("SanitizeContent(%q) error = %v, expected ErrContentEmpty", in, err)
		}
	}
}

func TestSanitizeContent_TooLong(t *testing.T) {
	long := strings.Repeat("a", MaxMessageLength+1)
	if _, err := SanitizeContent(long); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("error = %v, expected ErrContentTooLong", err)
	}

	exact := strings.Repeat("a", MaxMessageLength)
	if _, err := SanitizeContent(exact); err != nil {
		t.Errorf("content at the limit should pass, got %v", err)
	}
}

func TestSanitizeContent_CountsCharactersNotBytes(t *testing.T) {
	// 1000 three-byte runes. Well over the limit in bytes, exactly at it in
	// characters.
	exact := strings.Repeat("世", MaxMessageLength)
	if _, err := SanitizeContent(exact); err != nil {
		t.Errorf("multibyte content at the limit should pass, got %v", err)
	}

	if _, err := SanitizeContent(exact + "界"); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("error = %v, expected ErrContentTooLong one rune over the limit", err)
	}
}
