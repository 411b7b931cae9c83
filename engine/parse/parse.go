// Package parse turns template source into a block tree.
//
// The language is small: {{path}} placeholders, {{#if path}}..{{else}}..{{/if}}
// conditionals, {{#each path}}..{{/each}} loops and the layout marker
// {{{content}}}. Blocks nest to any depth; every open marker must be closed
// by the matching kind.
package parse

// Parse parses src into a tree. name is only used in error messages.
func Parse(name, src string) (*Tree, error) {
	p := &parser{
		lex:  newLexer(name, src),
		tree: &Tree{Name: name},
	}
	root, term, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if term.typ != itemEOF {
		return nil, p.errorf(term.pos, "unexpected %s", term.describe())
	}
	p.tree.Root = root
	return p.tree, nil
}

type parser struct {
	lex  *lexer
	tree *Tree
}

func (p *parser) errorf(pos Pos, format string, args ...interface{}) error {
	return newError(p.lex.name, p.lex.src, pos, format, args...)
}

// parseList consumes nodes until a terminator (else, a closing tag or EOF)
// and returns the terminator to the caller for validation.
func (p *parser) parseList() (*ListNode, item, error) {
	list := &ListNode{Pos: Pos(p.lex.pos)}
	for {
		it, err := p.lex.next()
		if err != nil {
			return nil, item{}, err
		}
		switch it.typ {
		case itemText:
			list.append(&TextNode{Pos: it.pos, Text: it.val})
		case itemVar:
			list.append(&VarNode{Pos: it.pos, Path: NewPath(it.val)})
		case itemContent:
			p.tree.ContentMarkers++
			list.append(&ContentNode{Pos: it.pos})
		case itemIf:
			n, err := p.parseIf(it)
			if err != nil {
				return nil, item{}, err
			}
			list.append(n)
		case itemEach:
			n, err := p.parseEach(it)
			if err != nil {
				return nil, item{}, err
			}
			list.append(n)
		default:
			return list, it, nil
		}
	}
}

func (p *parser) parseIf(open item) (Node, error) {
	n := &IfNode{Pos: open.pos, Path: NewPath(open.val)}
	then, term, err := p.parseList()
	if err != nil {
		return nil, err
	}
	n.Then = then
	if term.typ == itemElse {
		els, next, err := p.parseList()
		if err != nil {
			return nil, err
		}
		n.Else = els
		if next.typ == itemElse {
			return nil, p.errorf(next.pos, "duplicate {{else}} in %s", open.describe())
		}
		term = next
	}
	if err := p.expectClose(open, term, itemEndIf); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseEach(open item) (Node, error) {
	n := &EachNode{Pos: open.pos, Path: NewPath(open.val)}
	body, term, err := p.parseList()
	if err != nil {
		return nil, err
	}
	n.Body = body
	if term.typ == itemElse {
		return nil, p.errorf(term.pos, "{{else}} is not allowed in %s", open.describe())
	}
	if err := p.expectClose(open, term, itemEndEach); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) expectClose(open, term item, want itemType) error {
	if term.typ == want {
		return nil
	}
	if term.typ == itemEOF {
		line, col := lineCol(p.lex.src, open.pos)
		return p.errorf(term.pos, "unclosed %s opened at line %d, column %d", open.describe(), line, col)
	}
	return p.errorf(term.pos, "unexpected %s inside %s", term.describe(), open.describe())
}
