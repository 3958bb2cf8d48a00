package trigger

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello world"},
		{"  spaced   out\ttabs\nnewlines  ", "spaced out tabs newlines"},
		{"Hey! (really?) 'quoted' [ok]", "hey really quoted ok"},
		{"don't strip interior-punct like dl-sync", "don't strip interior-punct like dl-sync"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokenizeAndWordSet(t *testing.T) {
	tokens := Tokenize("dl sync now dl")
	want := []string{"dl", "sync", "now", "dl"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize = %v, want %v", tokens, want)
	}
	set := WordSet(tokens)
	if len(set) != 3 {
		t.Fatalf("WordSet len = %d, want 3", len(set))
	}
	for _, w := range []string{"dl", "sync", "now"} {
		if _, ok := set[w]; !ok {
			t.Fatalf("WordSet missing %q", w)
		}
	}
}

func TestStripSelfMention(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		email   string
		display string
		want    string
	}{
		{"full display name", "helper bot please say hi", "helper@example.com", "Helper Bot", "please say hi"},
		{"first name only", "helper please say hi", "helper@example.com", "Helper Bot", "please say hi"},
		{"full email", "helper@example.com status", "helper@example.com", "Helper Bot", "status"},
		{"local part", "helper status", "helper@example.com", "", "status"},
		{"not addressed", "please say hi", "helper@example.com", "Helper Bot", "please say hi"},
		{"mention mid-text survives", "say hi helper bot", "helper@example.com", "Helper Bot", "say hi helper bot"},
		{"empty text", "", "helper@example.com", "Helper Bot", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripSelfMention(tc.in, tc.email, tc.display); got != tc.want {
				t.Fatalf("StripSelfMention(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
