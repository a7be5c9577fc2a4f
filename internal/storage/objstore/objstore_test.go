package objstore

import "testing"

func TestObjectKeyJoinsNonEmptyParts(t *testing.T) {
	s := &Store{prefix: "tenant-a"}
	got := s.objectKey("nouns", "p003", "n1.json")
	want := "tenant-a/nouns/p003/n1.json"
	if got != want {
		t.Fatalf("objectKey() = %q, want %q", got, want)
	}
}

func TestObjectKeyWithoutPrefix(t *testing.T) {
	s := &Store{}
	got := s.objectKey("nouns", "p003", "n1.json")
	want := "nouns/p003/n1.json"
	if got != want {
		t.Fatalf("objectKey() = %q, want %q", got, want)
	}
}

func TestEncodeDecodeJSONRoundTrip(t *testing.T) {
	type sample struct {
		Source string `json:"source"`
	}
	data := encodeJSON(sample{Source: "a"})
	var out sample
	if !decodeJSON(data, &out) {
		t.Fatal("decodeJSON failed")
	}
	if out.Source != "a" {
		t.Fatalf("unexpected round trip: %+v", out)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	var out struct{}
	if decodeJSON([]byte("not json"), &out) {
		t.Fatal("expected decodeJSON to fail on invalid input")
	}
}
