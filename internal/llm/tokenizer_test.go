package llm

import "testing"

func TestLoadTokenizer(t *testing.T) {
	if err := LoadTokenizer(DefaultTokenizer); err != nil {
		t.Fatalf("LoadTokenizer(%q) failed: %v", DefaultTokenizer, err)
	}
	// Loading twice is a no-op.
	if err := LoadTokenizer(DefaultTokenizer); err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if err := LoadTokenizer("definitely-not-an-encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestCountTokens(t *testing.T) {
	if err := LoadTokenizer(DefaultTokenizer); err != nil {
		t.Fatal(err)
	}

	if got := CountTokens(DefaultTokenizer, ""); got != 0 {
		t.Errorf("CountTokens(empty) = %d, want 0", got)
	}
	if got := CountTokens(DefaultTokenizer, "hello world"); got <= 0 {
		t.Errorf("CountTokens(hello world) = %d, want > 0", got)
	}
	// Longer text never counts fewer tokens.
	short := CountTokens(DefaultTokenizer, "hello")
	long := CountTokens(DefaultTokenizer, "hello hello hello hello")
	if long <= short {
		t.Errorf("long = %d, short = %d, want long > short", long, short)
	}

	// Counts from an unloaded encoding are untrustworthy and come back 0.
	if got := CountTokens("never-loaded", "hello"); got != 0 {
		t.Errorf("CountTokens(unloaded) = %d, want 0", got)
	}
}
