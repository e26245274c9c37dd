package catalog

import (
	"strings"
	"testing"
)

func TestPlainTextStripsMarkup(t *testing.T) {
	got := PlainText(`<p>Durable <strong>steel</strong> widget</p><script>alert(1)</script><ul><li>Fast &amp; light</li></ul>`)
	if got != "Durable steel widget Fast & light" {
		t.Fatalf("unexpected plain text %q", got)
	}
}

func TestShortDescriptionCapsWords(t *testing.T) {
	e := Entity{Description: "<p>" + strings.Repeat("word ", 250) + "</p>"}
	got := e.ShortDescription()
	if n := len(strings.Fields(got)); n != DescriptionWords {
		t.Fatalf("expected %d words, got %d", DescriptionWords, n)
	}
	if TrimWords("a b", 5) != "a b" {
		t.Fatalf("short text should be unchanged")
	}
}
