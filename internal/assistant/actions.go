package assistant

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Action is one structured request emitted by the interpreter, e.g.
// {"action":"crear_cita","data":{...}}.
type Action struct {
	Name string          `json:"action"`
	Data json.RawMessage `json:"data,omitempty"`
}

var (
	fenceRe         = regexp.MustCompile("```[A-Za-z]*")
	singleQuotedRe  = regexp.MustCompile(`:\s*'([^']*)'`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	quoteReplacer = strings.NewReplacer(
		"\u00a0", " ", "\u200b", " ", "\ufeff", " ",
		"\u201c", `"`, "\u201d", `"`, "\u00ab", `"`, "\u00bb", `"`, "\u201e", `"`, "\u201f", `"`,
		"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
	)
)

// repairJSON fixes the mistakes models commonly make when writing JSON by
// hand: code fences, typographic quotes, single-quoted values and trailing
// commas.
func repairJSON(raw string) string {
	s := fenceRe.ReplaceAllString(raw, "")
	s = quoteReplacer.Replace(s)
	s = singleQuotedRe.ReplaceAllString(s, `: "$1"`)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// ExtractActions returns every action object found in text, in order.
// Objects that do not parse or carry no "action" key are ignored.
func ExtractActions(text string) []Action {
	s := repairJSON(text)
	var out []Action
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchBrace(s, i)
		if end < 0 {
			break
		}
		var a Action
		if err := json.Unmarshal([]byte(s[i:end+1]), &a); err == nil && strings.TrimSpace(a.Name) != "" {
			a.Name = strings.ToLower(strings.TrimSpace(a.Name))
			out = append(out, a)
			i = end
		}
	}
	return out
}

// StripActions removes action blocks and code fences so the remaining text
// can be shown to the patient.
func StripActions(text string) string {
	s := fenceRe.ReplaceAllString(text, "")
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			if end := matchBrace(s, i); end >= 0 {
				var a Action
				if json.Unmarshal([]byte(repairJSON(s[i:end+1])), &a) == nil && a.Name != "" {
					i = end
					continue
				}
			}
		}
		b.WriteByte(s[i])
	}
	return strings.TrimSpace(b.String())
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside string literals are skipped.
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
