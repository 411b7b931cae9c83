package parse

import (
	"fmt"
	"strings"
)

// Error is a malformed-markup error with the position of the offending tag.
type Error struct {
	Name string
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Name, e.Line, e.Col, e.Msg)
}

func newError(name, src string, pos Pos, format string, args ...interface{}) *Error {
	line, col := lineCol(src, pos)
	return &Error{
		Name: name,
		Line: line,
		Col:  col,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// lineCol converts a byte offset into 1-based line and column numbers.
func lineCol(src string, pos Pos) (int, int) {
	if int(pos) > len(src) {
		pos = Pos(len(src))
	}
	before := src[:pos]
	line := strings.Count(before, "\n") + 1
	col := int(pos) - strings.LastIndex(before, "\n")
	return line, col
}
