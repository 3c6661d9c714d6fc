// Package parser converts loosely delimited "label : value" text into
// structured records without a schema. The external service has no reliable
// record delimiter, so a fixed set of pivot labels - labels known to appear
// exactly once per logical record - marks where one record ends and the next
// begins.
package parser

import (
	"regexp"
	"strings"
)

// Record maps a label, as it appeared (whitespace-normalized, case
// preserved), to its value. A label repeated within one record holds a
// []string of its values in order; otherwise the value is a string.
type Record map[string]any

// PivotSet is the set of record-boundary labels, stored uppercased and
// whitespace-normalized.
type PivotSet map[string]struct{}

// defaultPivotKeys are the identity-like labels observed to start a new
// logical record in the service's replies.
var defaultPivotKeys = []string{
	"DNI", "RUC", "CE", "CI", "PASAPORTE",
	"NRO", "N°", "CLAVE",
	"FECHA REGISTRO", "FECHA HORA REGISTRO",
}

// DefaultPivots returns the built-in pivot set.
func DefaultPivots() PivotSet {
	return NewPivotSet(defaultPivotKeys...)
}

// NewPivotSet builds a pivot set from the given labels.
func NewPivotSet(keys ...string) PivotSet {
	ps := make(PivotSet, len(keys))
	ps.Add(keys...)
	return ps
}

// Add inserts labels into the set, normalizing them first.
func (ps PivotSet) Add(keys ...string) {
	for _, k := range keys {
		ps[strings.ToUpper(normalizeLabel(k))] = struct{}{}
	}
}

// Contains reports whether the (already whitespace-normalized) label is a
// pivot. Comparison is case-insensitive.
func (ps PivotSet) Contains(label string) bool {
	_, ok := ps[strings.ToUpper(label)]
	return ok
}

var wsRunPattern = regexp.MustCompile(`\s+`)
var hspaceRunPattern = regexp.MustCompile(`[ \t]+`)

// normalizeLabel collapses internal whitespace and trims the label, keeping
// its case.
func normalizeLabel(label string) string {
	return strings.TrimSpace(wsRunPattern.ReplaceAllString(label, " "))
}

type pair struct {
	label string
	value string
}

func isWS(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n'
}

// labelStart returns the start of the run of non-colon, non-newline bytes
// immediately before the colon at c, never reaching back past pos.
func labelStart(t string, pos, c int) int {
	ls := c
	for ls > pos {
		b := t[ls-1]
		if b == ':' || b == '\n' {
			break
		}
		ls--
	}
	return ls
}

// valueEnd returns the index just past the value starting at vs: the position
// of the whitespace that precedes the next label site, or the end of text.
// A label site is a colon whose preceding run of non-colon, non-newline bytes
// is itself preceded by whitespace - which means a value containing
// "word : more" after a space will be split there. That mis-split is a known
// boundary condition of the heuristic, not something to silently repair.
func valueEnd(t string, vs int) int {
	for q := vs; q < len(t); q++ {
		if !isWS(t[q]) {
			continue
		}
		rel := strings.IndexByte(t[q:], ':')
		if rel < 0 {
			return len(t)
		}
		seg := t[q : q+rel]
		candidate := strings.TrimLeft(seg, " \t\n")
		core := strings.TrimRight(candidate, " \t\n")
		if core != "" {
			// A newline inside the candidate label disqualifies this
			// site; a later position will catch the real one.
			if !strings.Contains(core, "\n") {
				return q
			}
		} else if len(seg) >= 2 {
			// Whitespace-only label: still a split point, and the
			// resulting empty label is discarded by the caller.
			return q
		}
	}
	return len(t)
}

// extractPairs scans the text for "label : value" occurrences anywhere, not
// only at line starts. Values extend until the next label site or the end of
// text and may span multiple lines; wrapped addresses are the normal case,
// not an error.
func extractPairs(text string) []pair {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")

	var pairs []pair
	pos := 0
	for pos < len(t) {
		rel := strings.IndexByte(t[pos:], ':')
		if rel < 0 {
			break
		}
		c := pos + rel
		label := strings.TrimSpace(t[labelStart(t, pos, c):c])
		if label == "" {
			pos = c + 1
			continue
		}

		vs := c + 1
		for vs < len(t) && isWS(t[vs]) {
			vs++
		}
		ve := valueEnd(t, vs)
		value := strings.TrimSpace(hspaceRunPattern.ReplaceAllString(t[vs:ve], " "))
		pairs = append(pairs, pair{label: label, value: value})
		pos = ve
	}
	return pairs
}

// Parse extracts records using the built-in pivot set.
func Parse(text string) []Record {
	return ParseWith(text, DefaultPivots())
}

// ParseWith walks the ordered label/value pairs, closing the current record
// and opening a new one each time a pivot label is seen after at least one
// pivot has already been seen and the current record is non-empty. Text with
// no pairs yields no records.
func ParseWith(text string, pivots PivotSet) []Record {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pairs := extractPairs(text)
	if len(pairs) == 0 {
		return nil
	}

	var records []Record
	current := Record{}
	pivotSeen := false

	for _, p := range pairs {
		label := normalizeLabel(p.label)

		if pivots.Contains(label) {
			if pivotSeen && len(current) > 0 {
				records = append(records, current)
				current = Record{}
			}
			pivotSeen = true
		}

		// A repeated label within one record accumulates its values in
		// order instead of being overwritten.
		if prev, ok := current[label]; ok {
			switch v := prev.(type) {
			case []string:
				current[label] = append(v, p.value)
			case string:
				current[label] = []string{v, p.value}
			}
		} else {
			current[label] = p.value
		}
	}

	if len(current) > 0 {
		records = append(records, current)
	}
	return records
}
