package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DescriptionWords is the word cap applied to descriptions sent to the AI step.
const DescriptionWords = 100

// PlainText strips HTML markup and collapses whitespace. Adjacent elements are separated by a space.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.Join(strings.Fields(html), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(html, "<", " <")))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// TrimWords returns at most n words of s.
func TrimWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}

// ShortDescription returns the entity description as plain text capped at DescriptionWords.
func (e Entity) ShortDescription() string {
	return TrimWords(PlainText(e.Description), DescriptionWords)
}
