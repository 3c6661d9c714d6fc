// Package extract strips boilerplate chrome from raw bot replies while
// preserving the line structure the parser needs for record-boundary
// detection, and flags side-channel signals found in the text.
package extract

import (
	"regexp"
	"strings"
)

var (
	botTagPattern   = regexp.MustCompile(`(?i)\[#?LEDER_BOT\]`)
	consultaPattern = regexp.MustCompile(`(?i)\[CONSULTA PE\]`)
	headerPattern   = regexp.MustCompile(`(?is)^\[.*?\]\s*→\s*.*?\[.*?\](\r?\n){1,2}`)
	footerPattern   = regexp.MustCompile(`(?is)((\r?\n){1,2}\[|Página\s*\d+/\d+.*|(\r?\n){1,2}Por favor, usa el formato correcto.*|↞ Anterior|Siguiente ↠.*|Credits\s*:.+|Wanted for\s*:.+|\s*@lederdata.*|(\r?\n){1,2}\s*Marca\s*@lederdata.*|(\r?\n){1,2}\s*Créditos\s*:\s*\d+)`)
	dashRunPattern  = regexp.MustCompile(`-{3,}`)
	hspacePattern   = regexp.MustCompile(`[ \t]+`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)

	photoTypePattern = regexp.MustCompile(`(?i)Foto\s*:\s*(rostro|huella|firma|adverso|reverso).*`)
	notFoundPattern  = regexp.MustCompile(`(?is)\[⚠️\]\s*(no se encontro información|no se han encontrado resultados|no se encontró una|no hay resultados|no tenemos datos|no se encontraron registros)`)
)

// Cleaned is the output of extraction: normalized text plus side-channel
// flags detected in it.
type Cleaned struct {
	Text   string
	Fields map[string]any
}

// Clean removes known boilerplate markers from a raw reply without destroying
// line breaks. Horizontal whitespace is collapsed, runs of three or more
// blank lines become exactly one blank line, and the result is trimmed.
// Empty input yields empty text and no fields.
func Clean(raw string) Cleaned {
	if raw == "" {
		return Cleaned{Fields: map[string]any{}}
	}

	text := raw
	text = botTagPattern.ReplaceAllString(text, "")
	text = consultaPattern.ReplaceAllString(text, "")
	text = headerPattern.ReplaceAllString(text, "")
	text = footerPattern.ReplaceAllString(text, "")
	text = dashRunPattern.ReplaceAllString(text, "")

	// Only spaces and tabs are collapsed; newlines carry structure the
	// parser relies on.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = hspacePattern.ReplaceAllString(text, " ")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	fields := map[string]any{}

	if m := photoTypePattern.FindStringSubmatch(text); m != nil {
		fields["photo_type"] = strings.ToLower(m[1])
	}

	if notFoundPattern.MatchString(text) {
		fields["not_found"] = true
	}

	return Cleaned{Text: text, Fields: fields}
}
