// Package command parses bot mentions out of group messages and dispatches
// them to registered handlers.
package command

import "strings"

// Well-known command names.
const (
	Help       = "help"
	Summarize  = "summarize"
	Initialize = "initialize"
)

// Invocation is the structured form of "@mention [/command] [action]".
type Invocation struct {
	Mention string // "@" plus optional "+" plus digits
	Phone   string // digits of the mention, without "@" and "+"
	Command string // command token without the leading "/", empty if absent
	Action  string // trailing free text, empty if absent
}

// Parse scans sanitized message text against the mention grammar:
//
//	invocation = mention [ ws command ] [ ws action ]
//	mention    = "@" [ "+" ] 1*DIGIT
//	command    = "/" 1*word
//	action     = any remaining text
//
// It returns false for anything that is not a well-formed invocation;
// such text is ordinary conversation and belongs to ingestion.
func Parse(text string) (*Invocation, bool) {
	s := text
	if !strings.HasPrefix(s, "@") {
		return nil, false
	}
	s = s[1:]

	plus := false
	if strings.HasPrefix(s, "+") {
		plus = true
		s = s[1:]
	}

	digits := leadingDigits(s)
	if digits == "" {
		return nil, false
	}
	s = s[len(digits):]

	inv := &Invocation{Phone: digits}
	inv.Mention = "@" + digits
	if plus {
		inv.Mention = "@+" + digits
	}

	// Mention alone is a complete invocation.
	if s == "" {
		return inv, true
	}
	// Anything after the mention must be separated by whitespace, otherwise
	// the "mention" was just a longer word (e.g. "@123abc").
	rest, ok := eatSpace(s)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return inv, true
	}

	if strings.HasPrefix(rest, "/") {
		word := leadingWord(rest[1:])
		if word == "" {
			return nil, false
		}
		inv.Command = word
		rest = rest[1+len(word):]
		if rest == "" {
			return inv, true
		}
		rest, ok = eatSpace(rest)
		if !ok {
			return nil, false
		}
	}

	inv.Action = strings.TrimSpace(rest)
	return inv, true
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func leadingWord(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			i++
			continue
		}
		break
	}
	return s[:i]
}

// eatSpace requires at least one whitespace byte and consumes the run.
func eatSpace(s string) (string, bool) {
	trimmed := strings.TrimLeft(s, " \t")
	if len(trimmed) == len(s) {
		return s, false
	}
	return trimmed, true
}
