package crypto

import (
	"errors"
	"testing"
)

func TestCanonicalizeSortsKeysAndDropsNulls(t *testing.T) {
	input := map[string]any{
		"b": 1,
		"a": "x",
		"c": nil,
		"d": []any{true, false, nil},
	}
	got, err := Canonicalize(input)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":"x","b":1,"d":[true,false,null]}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalizeStructUsesJSONTags(t *testing.T) {
	type item struct {
		Zeta  string `json:"zeta"`
		Alpha int64  `json:"alpha"`
	}
	got, err := Canonicalize(item{Zeta: "z", Alpha: 7})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(got) != `{"alpha":7,"zeta":"z"}` {
		t.Fatalf("unexpected canonical form: %s", got)
	}
}

func TestCanonicalizeNormalizesNFC(t *testing.T) {
	composed, err := Canonicalize(map[string]any{"v": "caf\u00e9"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	decomposed, err := Canonicalize(map[string]any{"v": "cafe\u0301"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(composed) != string(decomposed) {
		t.Fatalf("expected NFC normalization: %s vs %s", composed, decomposed)
	}
}

func TestCanonicalizeRejectsFloats(t *testing.T) {
	_, err := Canonicalize(map[string]any{"amount": 1.5})
	if !errors.Is(err, ErrFloatNotAllowed) {
		t.Fatalf("expected ErrFloatNotAllowed, got %v", err)
	}
}

func TestCanonicalizeDoesNotEscapeHTML(t *testing.T) {
	got, err := Canonicalize(map[string]any{"k": "<a&b>"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(got) != `{"k":"<a&b>"}` {
		t.Fatalf("unexpected escaping: %s", got)
	}
}

func TestCanonicalDigestStable(t *testing.T) {
	a, err := CanonicalDigest(map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, err := CanonicalDigest(map[string]any{"y": 2, "x": 1})
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if a != b {
		t.Fatalf("digest should not depend on key order")
	}
	if ShortDigest(a, 12) == "" || len(ShortDigest(a, 12)) != 12 {
		t.Fatalf("short digest: %q", ShortDigest(a, 12))
	}
}
