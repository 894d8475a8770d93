package dataset

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markupPattern = regexp.MustCompile(`<[a-zA-Z/!][^>]*>|&[a-zA-Z]+;|&#[0-9]+;`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// stripMarkup returns the text content of cells scraped with HTML tags or
// entities left in. Cells without markup are returned unchanged.
func stripMarkup(v string) string {
	if !markupPattern.MatchString(v) {
		return v
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(v))
	if err != nil {
		return v
	}
	doc.Find("script, style").Remove()
	text := spacePattern.ReplaceAllString(doc.Text(), " ")
	return strings.TrimSpace(text)
}
