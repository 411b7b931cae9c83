package parse

import (
	"fmt"
	"strings"
)

// NodeType identifies the kind of a node in the block tree.
type NodeType int

const (
	NodeList NodeType = iota
	NodeText
	NodeVar
	NodeIf
	NodeEach
	NodeContent
)

// Pos is a byte offset into the template source.
type Pos int

func (p Pos) Position() Pos { return p }

// Node is an element of the block tree.
type Node interface {
	Type() NodeType
	Position() Pos
	// String reproduces the template source for the node.
	String() string
}

// Path is a dotted identifier such as producto.nombre, this or @key.
type Path struct {
	Raw      string
	Segments []string
}

// NewPath splits raw on dots. Empty segments are kept so that
// malformed paths like "a..b" resolve to nothing instead of "a.b".
func NewPath(raw string) Path {
	if raw == "" {
		return Path{}
	}
	return Path{Raw: raw, Segments: strings.Split(raw, ".")}
}

func (p Path) String() string { return p.Raw }

// ListNode holds a sequence of nodes.
type ListNode struct {
	Pos
	Nodes []Node
}

func (l *ListNode) Type() NodeType { return NodeList }

func (l *ListNode) append(n Node) {
	l.Nodes = append(l.Nodes, n)
}

func (l *ListNode) String() string {
	if l == nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range l.Nodes {
		sb.WriteString(n.String())
	}
	return sb.String()
}

// TextNode is literal markup copied to the output unchanged.
type TextNode struct {
	Pos
	Text string
}

func (t *TextNode) Type() NodeType { return NodeText }
func (t *TextNode) String() string { return t.Text }

// VarNode is a {{path}} placeholder.
type VarNode struct {
	Pos
	Path Path
}

func (v *VarNode) Type() NodeType { return NodeVar }
func (v *VarNode) String() string { return "{{" + v.Path.Raw + "}}" }

// IfNode is {{#if path}}Then{{else}}Else{{/if}}. Else is nil when the
// block has no {{else}}.
type IfNode struct {
	Pos
	Path Path
	Then *ListNode
	Else *ListNode
}

func (i *IfNode) Type() NodeType { return NodeIf }

func (i *IfNode) String() string {
	s := "{{#if " + i.Path.Raw + "}}" + i.Then.String()
	if i.Else != nil {
		s += "{{else}}" + i.Else.String()
	}
	return s + "{{/if}}"
}

// EachNode is {{#each path}}Body{{/each}}.
type EachNode struct {
	Pos
	Path Path
	Body *ListNode
}

func (e *EachNode) Type() NodeType { return NodeEach }

func (e *EachNode) String() string {
	return "{{#each " + e.Path.Raw + "}}" + e.Body.String() + "{{/each}}"
}

// ContentNode is the reserved layout insertion marker {{{content}}}.
type ContentNode struct {
	Pos
}

func (c *ContentNode) Type() NodeType { return NodeContent }
func (c *ContentNode) String() string { return ContentMarker }

// Tree is the parsed form of one template.
type Tree struct {
	Name string
	Root *ListNode
	// ContentMarkers counts {{{content}}} markers anywhere in the tree.
	ContentMarkers int
}

func (t *Tree) String() string {
	return t.Root.String()
}

// Dump returns an indented, one node per line description of the tree.
func (t *Tree) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "template %q\n", t.Name)
	dumpList(&sb, t.Root, 1)
	return sb.String()
}

func dumpList(sb *strings.Builder, l *ListNode, depth int) {
	if l == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, n := range l.Nodes {
		switch n := n.(type) {
		case *TextNode:
			fmt.Fprintf(sb, "%sText %q\n", indent, n.Text)
		case *VarNode:
			fmt.Fprintf(sb, "%sVar %s\n", indent, n.Path.Raw)
		case *IfNode:
			fmt.Fprintf(sb, "%sIf %s\n", indent, n.Path.Raw)
			dumpList(sb, n.Then, depth+1)
			if n.Else != nil {
				fmt.Fprintf(sb, "%sElse\n", indent)
				dumpList(sb, n.Else, depth+1)
			}
		case *EachNode:
			fmt.Fprintf(sb, "%sEach %s\n", indent, n.Path.Raw)
			dumpList(sb, n.Body, depth+1)
		case *ContentNode:
			fmt.Fprintf(sb, "%sContent\n", indent)
		}
	}
}
