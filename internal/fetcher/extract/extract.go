// Package extract reads listing cards out of catalog HTML using per-source CSS selectors.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/catalog"
)

// Parse builds a goquery document from raw HTML.
func Parse(body []byte) (*goquery.Document, error) {
	return ParseReader(bytes.NewReader(body))
}

// ParseReader builds a goquery document from an HTML stream.
func ParseReader(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Listings extracts one raw listing per card matched by sel.Item, in document order.
// Fields are returned as found; cleaning is left to the normalizer.
func Listings(doc *goquery.Document, sel catalog.Selectors) []v1.RawListing {
	cards := doc.Find(sel.Item)
	out := make([]v1.RawListing, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		l := v1.RawListing{
			IdentifierRaw: field(card, sel.Identifier),
			TitleRaw:      field(card, sel.Title),
			PriceTextRaw:  field(card, sel.Price),
			LinkRaw:       field(card, sel.Link),
			ImageRaw:      field(card, sel.Image),
		}
		if l.IdentifierRaw == "" && l.LinkRaw == "" {
			return // no key: nothing downstream could use it
		}
		out = append(out, l)
	})
	return out
}

// Count returns how many cards sel.Item matches.
func Count(doc *goquery.Document, sel catalog.Selectors) int {
	return doc.Find(sel.Item).Length()
}

// NextPageHref returns the href of the next-page control, if the source has one and
// the control is not disabled.
func NextPageHref(doc *goquery.Document, sel catalog.Selectors) (string, bool) {
	if sel.NextPage == "" {
		return "", false
	}
	next := doc.Find(sel.NextPage).First()
	if next.Length() == 0 || Disabled(next) {
		return "", false
	}
	href, ok := next.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	return href, true
}

// Disabled reports whether a control is marked as not interactable.
func Disabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, ok := s.Attr("aria-disabled"); ok && v == "true" {
		return true
	}
	return s.HasClass("disabled")
}

// field reads one value from a card. The card itself is used when the selector is
// empty or matches the card element.
func field(card *goquery.Selection, fs catalog.FieldSelector) string {
	target := card
	if fs.CSS != "" {
		target = card.Find(fs.CSS).First()
		if target.Length() == 0 {
			if !card.Is(fs.CSS) {
				return ""
			}
			target = card
		}
	}

	if fs.Attr != "" {
		if v, ok := target.Attr(fs.Attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		if !fs.FallbackText {
			return ""
		}
	}
	return strings.Join(strings.Fields(target.Text()), " ")
}
