package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/catalog"
	"github.com/shopspring/decimal"
)

// ErrMalformedListing marks a raw listing that cannot become an Observation.
// The caller drops that listing and keeps going.
var ErrMalformedListing = errors.New("malformed listing")

// nameReplacer blanks out characters that would break a delimited log format.
var nameReplacer = strings.NewReplacer(
	",", " ",
	";", " ",
	"\"", " ",
	"\t", " ",
	"\r", " ",
	"\n", " ",
)

// Normalizer turns raw listing field bags into canonical observations. It is stateless.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize converts one raw listing from src into an Observation stamped with runAt.
func (n *Normalizer) Normalize(raw v1.RawListing, src catalog.Source, runAt time.Time) (v1.Observation, error) {
	base, err := url.Parse(src.Origin)
	if err != nil || base.Host == "" {
		base, err = url.Parse(src.URL)
		if err != nil {
			return v1.Observation{}, fmt.Errorf("%w: source %q has no usable origin", ErrMalformedListing, src.Name)
		}
	}

	link, err := ResolveLink(base, raw.LinkRaw)
	if err != nil {
		return v1.Observation{}, fmt.Errorf("%w: link %q: %v", ErrMalformedListing, raw.LinkRaw, err)
	}

	identifier := strings.TrimSpace(raw.IdentifierRaw)
	if identifier == "" {
		identifier = link
	}
	if identifier == "" {
		return v1.Observation{}, fmt.Errorf("%w: neither identifier nor link present", ErrMalformedListing)
	}

	image, err := ResolveLink(base, raw.ImageRaw)
	if err != nil {
		// A broken image reference never costs the listing.
		image = ""
	}

	price, known := ParsePrice(raw.PriceTextRaw)

	name := CleanName(raw.TitleRaw)
	if name == "" {
		name = link
	}
	if name == "" {
		name = identifier
	}

	return v1.Observation{
		ObservedAt:   runAt,
		Source:       src.Name,
		Name:         name,
		Price:        price,
		Identifier:   identifier,
		Link:         link,
		Image:        image,
		PriceUnknown: !known,
	}, nil
}

// CleanName trims a title and replaces separator and quote characters with spaces.
func CleanName(title string) string {
	return strings.Join(strings.Fields(nameReplacer.Replace(title)), " ")
}

// ParsePrice keeps the digits and the first decimal point of text and parses the result.
// known is false (and the price zero) when nothing parseable remains or the value is zero.
func ParsePrice(text string) (price decimal.Decimal, known bool) {
	var b strings.Builder
	seenPoint := false
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenPoint:
			seenPoint = true
			b.WriteRune(r)
		}
	}

	digits := strings.TrimSuffix(b.String(), ".")
	if digits == "" || digits == "." {
		return decimal.Zero, false
	}
	if strings.HasPrefix(digits, ".") {
		digits = "0" + digits
	}

	d, err := decimal.NewFromString(digits)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ResolveLink makes ref absolute against base and drops the fragment.
// An empty ref resolves to an empty string.
func ResolveLink(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
