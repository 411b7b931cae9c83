package engine

import (
	"strings"

	"storefront/engine/parse"
)

// scope is one level of the resolution stack: the outer context at the
// bottom, one entry per {{#each}} iteration above it.
type scope struct {
	this   Value
	key    string
	hasKey bool
}

type state struct {
	sb      *strings.Builder
	scopes  []scope
	content *string // body inserted at {{{content}}}; nil outside a layout
}

func newState(sb *strings.Builder, data interface{}) *state {
	return &state{
		sb:     sb,
		scopes: []scope{{this: ValueOf(data)}},
	}
}

func (s *state) push(sc scope) { s.scopes = append(s.scopes, sc) }
func (s *state) pop()          { s.scopes = s.scopes[:len(s.scopes)-1] }

func (s *state) walkList(list *parse.ListNode) {
	if list == nil {
		return
	}
	for _, n := range list.Nodes {
		s.walk(n)
	}
}

func (s *state) walk(n parse.Node) {
	switch n := n.(type) {
	case *parse.TextNode:
		s.sb.WriteString(n.Text)
	case *parse.VarNode:
		s.sb.WriteString(s.resolve(n.Path).String())
	case *parse.IfNode:
		if s.resolve(n.Path).Truthy() {
			s.walkList(n.Then)
		} else {
			s.walkList(n.Else)
		}
	case *parse.EachNode:
		s.walkEach(n)
	case *parse.ContentNode:
		if s.content != nil {
			s.sb.WriteString(*s.content)
		}
	}
}

func (s *state) walkEach(n *parse.EachNode) {
	v := s.resolve(n.Path)
	switch v.Kind() {
	case Sequence:
		for _, item := range v.Items() {
			s.push(scope{this: item})
			s.walkList(n.Body)
			s.pop()
		}
	case Mapping:
		for _, e := range v.Entries() {
			s.push(scope{this: e.Value, key: e.Key, hasKey: true})
			s.walkList(n.Body)
			s.pop()
		}
	}
}

// resolve walks path against the scope stack. The first segment is looked
// up innermost scope first, so loop items shadow the outer context;
// later segments descend through mappings only. this and @key are absent
// outside {{#each}}.
func (s *state) resolve(p parse.Path) Value {
	if len(p.Segments) == 0 || p.Segments[0] == "" {
		return Value{}
	}
	top := s.scopes[len(s.scopes)-1]

	var v Value
	switch first := p.Segments[0]; first {
	case "this":
		// only loop items are addressable as this
		if len(s.scopes) == 1 {
			return Value{}
		}
		v = top.this
	case "@key":
		if !top.hasKey {
			return Value{}
		}
		v = ValueOf(top.key)
	default:
		found := false
		for i := len(s.scopes) - 1; i >= 0; i-- {
			if fv, ok := s.scopes[i].this.Field(first); ok {
				v, found = fv, true
				break
			}
		}
		if !found {
			return Value{}
		}
	}

	for _, seg := range p.Segments[1:] {
		if seg == "this" {
			continue
		}
		if seg == "" {
			return Value{}
		}
		fv, ok := v.Field(seg)
		if !ok {
			return Value{}
		}
		v = fv
	}
	return v
}

// Resolve looks a dotted path up in data. It returns an Absent value when
// any segment is missing or descends through a non-mapping.
func Resolve(data interface{}, path string) Value {
	return newState(nil, data).resolve(parse.NewPath(path))
}
