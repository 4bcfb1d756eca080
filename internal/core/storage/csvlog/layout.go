package csvlog

import (
	"strings"

	"github.com/aevon-lab/pricewatch/internal/core/storage"
)

type column int

const (
	colUnknown column = iota
	colDate
	colSource
	colName
	colPrice
	colIdentifier
	colLink
	colImage
)

// canonicalHeader is what new logs are written with (schema v2).
var canonicalHeader = []string{"date", "brand", "name", "price", "identifier", "link", "image"}

var headerAliases = map[string]column{
	"date":        colDate,
	"timestamp":   colDate,
	"observed_at": colDate,
	"brand":       colSource,
	"source":      colSource,
	"name":        colName,
	"title":       colName,
	"price":       colPrice,
	"identifier":  colIdentifier,
	"sku":         colIdentifier,
	"id":          colIdentifier,
	"link":        colLink,
	"url":         colLink,
	"image":       colImage,
	"image_url":   colImage,
}

// layout maps the physical columns of one log file onto observation fields.
type layout struct {
	version int
	columns []column
	header  []string
}

func canonicalLayout() layout {
	l, _ := parseHeader(canonicalHeader)
	return l
}

// parseHeader resolves a header record into a layout. ok is false when the record
// does not look like a header at all (no date and no price column).
func parseHeader(record []string) (layout, bool) {
	l := layout{
		columns: make([]column, len(record)),
		header:  make([]string, len(record)),
	}
	seen := make(map[column]string)
	for i, raw := range record {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		l.header[i] = name
		col := headerAliases[name]
		if _, dup := seen[col]; dup && col != colUnknown {
			col = colUnknown // first occurrence wins
		}
		if col != colUnknown {
			seen[col] = name
		}
		l.columns[i] = col
	}

	_, hasDate := seen[colDate]
	_, hasPrice := seen[colPrice]
	if !hasDate && !hasPrice {
		return layout{}, false
	}

	idName, hasID := seen[colIdentifier]
	_, hasSource := seen[colSource]
	switch {
	case hasID && idName == "identifier" && hasSource:
		l.version = storage.SchemaV2
	case hasID && hasSource:
		l.version = storage.SchemaV1
	default:
		l.version = storage.SchemaV0
	}
	return l, true
}

// lacksCanonicalColumns reports whether appending in this layout would drop
// observation fields.
func (l layout) lacksCanonicalColumns() bool {
	have := make(map[column]bool, len(l.columns))
	for _, c := range l.columns {
		have[c] = true
	}
	for _, c := range canonicalLayout().columns {
		if !have[c] {
			return true
		}
	}
	return false
}

// upgraded is the canonical layout followed by the unrecognized columns of l.
func (l layout) upgraded() layout {
	up := canonicalLayout()
	for i, c := range l.columns {
		if c == colUnknown {
			up.columns = append(up.columns, colUnknown)
			up.header = append(up.header, l.header[i])
		}
	}
	return up
}

// remapRow moves a record written in layout from into layout to. Columns to has
// but from lacks are left empty.
func remapRow(from, to layout, record []string) []string {
	pos := make(map[column]int, len(from.columns))
	var unknown []int
	for i, c := range from.columns {
		if c == colUnknown {
			unknown = append(unknown, i)
			continue
		}
		pos[c] = i
	}

	out := make([]string, len(to.columns))
	next := 0
	for j, c := range to.columns {
		if c == colUnknown {
			if next < len(unknown) {
				out[j] = record[unknown[next]]
				next++
			}
			continue
		}
		if i, ok := pos[c]; ok {
			out[j] = record[i]
		}
	}
	return out
}
