package compiler

import "strings"

// JSONAccess is the result of the JSON Access Micro-parser (§4.2).
type JSONAccess struct {
	Segments    []string
	ExtractText bool
}

// bareSegmentChars is the character set of a bare (unquoted) segment.
const bareSegmentChars = "0123456789abcdefghijklmnopqrstuvwxyz_"

// ParseJSONAccess parses the substring of a field path starting at the first
// "->", per the grammar:
//
//	access  := "->>" segment
//	         | "->" segment ( "->" segment )* ( "->>" segment )?
//	segment := "'" [^']+ "'" | [0-9a-z_]+
func ParseJSONAccess(s string) (JSONAccess, error) {
	p := &jsonAccessParser{src: s}
	return p.parse()
}

type jsonAccessParser struct {
	src string
	pos int
}

func (p *jsonAccessParser) parse() (JSONAccess, error) {
	var segments []string
	extractText := false

	for {
		op, ok := p.consumeArrow()
		if !ok {
			return JSONAccess{}, &CompileError{Kind: ErrInvalidJSONAccessFormat, Message: "expected -> or ->> at " + p.remainder()}
		}
		seg, err := p.consumeSegment()
		if err != nil {
			return JSONAccess{}, err
		}
		segments = append(segments, seg)
		extractText = op == "->>"

		if p.pos >= len(p.src) {
			break
		}
		if extractText {
			// ->> may only appear as the final arrow.
			return JSONAccess{}, &CompileError{Kind: ErrInvalidJSONAccessFormat, Message: "->> must be the last access"}
		}
	}

	return JSONAccess{Segments: segments, ExtractText: extractText}, nil
}

func (p *jsonAccessParser) remainder() string {
	if p.pos >= len(p.src) {
		return "<eof>"
	}
	return p.src[p.pos:]
}

func (p *jsonAccessParser) consumeArrow() (string, bool) {
	rest := p.src[p.pos:]
	if strings.HasPrefix(rest, "->>") {
		p.pos += 3
		return "->>", true
	}
	if strings.HasPrefix(rest, "->") {
		p.pos += 2
		return "->", true
	}
	return "", false
}

func (p *jsonAccessParser) consumeSegment() (string, error) {
	if p.pos >= len(p.src) {
		return "", &CompileError{Kind: ErrInvalidJSONAccessFormat, Message: "expected segment at end of input"}
	}
	if p.src[p.pos] == '\'' {
		return p.consumeQuotedSegment()
	}
	start := p.pos
	for p.pos < len(p.src) && strings.ContainsRune(bareSegmentChars, rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", &CompileError{Kind: ErrInvalidJSONAccessFormat, Message: "expected segment at " + p.remainder()}
	}
	return p.src[start:p.pos], nil
}

func (p *jsonAccessParser) consumeQuotedSegment() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	closeIdx := strings.IndexByte(p.src[p.pos:], '\'')
	if closeIdx < 0 {
		return "", &CompileError{Kind: ErrInvalidJSONAccessQuote, Message: "unterminated quote at " + p.src[start:]}
	}
	content := p.src[p.pos : p.pos+closeIdx]
	if content == "" {
		return "", &CompileError{Kind: ErrInvalidJSONAccessFormat, Message: "empty quoted segment"}
	}
	p.pos += closeIdx + 1
	return content, nil
}

// renderJSONAccess re-emits a JSONAccess as an access-string path fragment,
// used only by round-trip tests (spec.md §8 property 4): the micro-parser's
// output for path(s1..sn, e) must parse back to the same (s, e).
func renderJSONAccess(segments []string, extractText bool) string {
	var sb strings.Builder
	for i, seg := range segments {
		op := "->"
		if extractText && i == len(segments)-1 {
			op = "->>"
		}
		sb.WriteString(op)
		if needsQuoting(seg) {
			sb.WriteByte('\'')
			sb.WriteString(seg)
			sb.WriteByte('\'')
		} else {
			sb.WriteString(seg)
		}
	}
	return sb.String()
}

func needsQuoting(seg string) bool {
	for _, r := range seg {
		if !strings.ContainsRune(bareSegmentChars, r) {
			return true
		}
	}
	return seg == ""
}
