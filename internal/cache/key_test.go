package cache

import "testing"

func TestGenerateKeyDeterministic(t *testing.T) {
	in := KeyInputs{
		Model:    "gpt-4o-mini",
		Messages: []KeyMessage{{Role: "user", Content: "hi"}},
		MaxTokens: 100,
	}
	k1 := GenerateKey(in)
	k2 := GenerateKey(in)
	if k1 != k2 {
		t.Fatalf("expected deterministic key, got %q vs %q", k1, k2)
	}
}

func TestGenerateKeyDiffersOnContent(t *testing.T) {
	a := GenerateKey(KeyInputs{Model: "gpt-4o-mini", Messages: []KeyMessage{{Role: "user", Content: "hi"}}})
	b := GenerateKey(KeyInputs{Model: "gpt-4o-mini", Messages: []KeyMessage{{Role: "user", Content: "bye"}}})
	if a == b {
		t.Fatal("expected different keys for different content")
	}
}

func TestGenerateKeyOmitsAbsentOptionalFields(t *testing.T) {
	withTemp := GenerateKey(KeyInputs{Model: "m", Temperature: ptr(0.0)})
	withoutTemp := GenerateKey(KeyInputs{Model: "m"})
	if withTemp == withoutTemp {
		t.Fatal("explicit temperature=0 should differ from an absent temperature field")
	}
}

func ptr[T any](v T) *T { return &v }
