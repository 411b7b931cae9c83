package parse

import (
	"strings"
)

// ContentMarker is the reserved layout insertion token.
const ContentMarker = "{{{content}}}"

const (
	leftDelim  = "{{"
	rightDelim = "}}"
)

type itemType int

const (
	itemEOF itemType = iota
	itemText
	itemVar
	itemIf
	itemElse
	itemEndIf
	itemEach
	itemEndEach
	itemContent
)

type item struct {
	typ itemType
	pos Pos
	val string // text, or the path of var/if/each items
}

func (i item) describe() string {
	switch i.typ {
	case itemEOF:
		return "end of template"
	case itemElse:
		return "{{else}}"
	case itemEndIf:
		return "{{/if}}"
	case itemEndEach:
		return "{{/each}}"
	case itemIf:
		return "{{#if " + i.val + "}}"
	case itemEach:
		return "{{#each " + i.val + "}}"
	case itemContent:
		return ContentMarker
	case itemVar:
		return "{{" + i.val + "}}"
	default:
		return "text"
	}
}

// lexer splits template source into text runs and tags. A "{{" that does
// not open a recognised tag is literal text; only block-looking tags
// ({{#..}}, {{/..}}) are rejected when malformed.
type lexer struct {
	name string
	src  string
	pos  int
}

func newLexer(name, src string) *lexer {
	return &lexer{name: name, src: src}
}

func (l *lexer) next() (item, error) {
	if l.pos >= len(l.src) {
		return item{typ: itemEOF, pos: Pos(len(l.src))}, nil
	}
	start := l.pos
	scan := l.pos
	for {
		i := strings.Index(l.src[scan:], leftDelim)
		if i < 0 {
			l.pos = len(l.src)
			return item{typ: itemText, pos: Pos(start), val: l.src[start:]}, nil
		}
		tagPos := scan + i
		tag, width, ok, err := l.tagAt(tagPos)
		if err != nil {
			return item{}, err
		}
		if !ok {
			// not a tag: the first brace is literal, keep scanning after it
			scan = tagPos + 1
			continue
		}
		if tagPos > start {
			l.pos = tagPos
			return item{typ: itemText, pos: Pos(start), val: l.src[start:tagPos]}, nil
		}
		l.pos = tagPos + width
		return tag, nil
	}
}

// tagAt classifies the "{{" found at pos. ok is false when the text there
// is not a tag of the language.
func (l *lexer) tagAt(pos int) (item, int, bool, error) {
	rest := l.src[pos:]
	if strings.HasPrefix(rest, ContentMarker) {
		return item{typ: itemContent, pos: Pos(pos)}, len(ContentMarker), true, nil
	}
	end := strings.Index(rest[len(leftDelim):], rightDelim)
	block := len(rest) > 2 && (rest[2] == '#' || rest[2] == '/')
	if end < 0 {
		if block {
			return item{}, 0, false, newError(l.name, l.src, Pos(pos), "unclosed tag %q", truncate(rest, 20))
		}
		return item{}, 0, false, nil
	}
	inner := rest[len(leftDelim) : len(leftDelim)+end]
	width := len(leftDelim) + end + len(rightDelim)
	it := item{pos: Pos(pos)}

	switch {
	case strings.HasPrefix(inner, "#"):
		fields := strings.Fields(inner[1:])
		if len(fields) == 0 {
			return item{}, 0, false, newError(l.name, l.src, it.pos, "empty block tag")
		}
		switch fields[0] {
		case "if":
			it.typ = itemIf
		case "each":
			it.typ = itemEach
		default:
			return item{}, 0, false, newError(l.name, l.src, it.pos, "unknown block %q", fields[0])
		}
		if len(fields) != 2 {
			return item{}, 0, false, newError(l.name, l.src, it.pos, "{{#%s}} takes exactly one path", fields[0])
		}
		if !IsPath(fields[1]) {
			return item{}, 0, false, newError(l.name, l.src, it.pos, "invalid path %q in {{#%s}}", fields[1], fields[0])
		}
		it.val = fields[1]
		return it, width, true, nil
	case strings.HasPrefix(inner, "/"):
		switch strings.TrimSpace(inner[1:]) {
		case "if":
			it.typ = itemEndIf
		case "each":
			it.typ = itemEndEach
		default:
			return item{}, 0, false, newError(l.name, l.src, it.pos, "unknown closing tag %q", "{{"+inner+"}}")
		}
		return it, width, true, nil
	case inner == "else":
		it.typ = itemElse
		return it, width, true, nil
	case IsPath(inner):
		it.typ = itemVar
		it.val = inner
		return it, width, true, nil
	}
	return item{}, 0, false, nil
}

// IsPath reports whether s is a valid placeholder path: one or more of
// letters, digits, '_', '.', '@'.
func IsPath(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '@':
		default:
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
