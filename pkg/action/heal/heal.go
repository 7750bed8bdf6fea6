// Package heal repairs malformed JSON returned by LLM providers. Each
// repair strategy is a pure function; Heal tries them in order and gives
// up with nil when none yields a parse.
package heal

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedBlockRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	integerRe       = regexp.MustCompile(`^-?\d+$`)
	decimalRe       = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// Heal attempts to salvage a JSON value from raw provider output. Returns
// nil when nothing parseable can be recovered; callers must treat that as
// "no response this turn", not as a fatal condition. String-typed values
// that look like numbers or booleans are coerced to their native types.
func Heal(raw string) any {
	for _, candidate := range candidates(raw) {
		if v, ok := parse(candidate); ok {
			return Coerce(v)
		}
		repaired := repair(candidate)
		if v, ok := parse(repaired); ok {
			return Coerce(v)
		}
	}
	return nil
}

// candidates yields progressively more aggressive extractions of the raw
// text: as-is, the contents of a fenced code block, and the widest
// balanced bracket span.
func candidates(raw string) []string {
	out := []string{strings.TrimSpace(raw)}
	if fenced, ok := ExtractFenced(raw); ok {
		out = append(out, fenced)
	}
	if span, ok := ExtractBracketSpan(raw); ok {
		out = append(out, span)
	}
	return out
}

func parse(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

// ExtractFenced returns the contents of the first markdown code fence.
func ExtractFenced(raw string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractBracketSpan returns the span from the first opening brace or
// bracket to the last matching closer.
func ExtractBracketSpan(raw string) (string, bool) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", false
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// repair applies the structural fixes in sequence: strip trailing commas,
// quote bare object keys, then balance any unclosed brackets.
func repair(s string) string {
	return BalanceBrackets(QuoteBareKeys(StripTrailingCommas(s)))
}

// StripTrailingCommas removes commas that directly precede a closing
// brace or bracket.
func StripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// QuoteBareKeys wraps unquoted object keys in double quotes.
func QuoteBareKeys(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)
}

// BalanceBrackets appends closers for any braces or brackets left open,
// in the order they were opened. String contents are skipped.
func BalanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// Coerce recursively converts string values that look like integers,
// decimals or booleans into their native types. Providers occasionally
// stringify primitives even under a strict schema.
func Coerce(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = Coerce(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = Coerce(item)
		}
		return val
	case string:
		return coerceString(val)
	default:
		return v
	}
}

func coerceString(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if integerRe.MatchString(s) {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	if decimalRe.MatchString(s) {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return s
}
