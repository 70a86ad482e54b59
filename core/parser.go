package lisp

import (
	"errors"
	"strconv"
	"strings"
)

type NodeKind int

const (
	NodeIdent NodeKind = iota
	NodeQuoted         // Children[0] is the quoted node
	NodeString
	NodeInt
	NodeFloat
	NodeNil
	NodeList
	NodeValue // already-evaluated Value handed back to the call path; never produced by Parse
)

type Node struct {
	Kind     NodeKind
	Int      int64
	Float    float64
	Str      string
	Children []*Node
	Bracket  bool // list written as [...]
	Value    *Value
	Pos      Pos
}

// Program is the parsed form of a whole source text.
type Program struct {
	Source string
	Nodes  []*Node
}

func (n *Node) String() string {
	switch n.Kind {
	case NodeIdent:
		return n.Str
	case NodeQuoted:
		return "'" + n.Children[0].String()
	case NodeString:
		return `"` + n.Str + `"`
	case NodeInt:
		return strconv.FormatInt(n.Int, 10)
	case NodeFloat:
		return formatFloat(n.Float)
	case NodeNil:
		return "nil"
	case NodeList:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		if n.Bracket {
			return "[" + strings.Join(parts, " ") + "]"
		}
		return "(" + strings.Join(parts, " ") + ")"
	case NodeValue:
		return n.Value.Show()
	default:
		return "<unknown>"
	}
}

type parser struct {
	s *scanner
}

// Parse parses a whole program. Any syntax error rejects the entire input.
func Parse(input string) (*Program, error) {
	p := &parser{s: newScanner(input)}
	prog := &Program{Source: input}
	for {
		p.s.skipWhitespace()
		if p.s.atEnd() {
			return prog, nil
		}
		if ch := p.s.peek(); ch == ')' || ch == ']' {
			return nil, &SyntaxError{Kind: UnexpectedParen, Pos: p.s.position()}
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		prog.Nodes = append(prog.Nodes, node)
	}
}

// ParseExpr parses input that must hold exactly one expression.
func ParseExpr(input string) (*Node, error) {
	prog, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(prog.Nodes) != 1 {
		return nil, errors.New("expected exactly one expression")
	}
	return prog.Nodes[0], nil
}

func (p *parser) parseNode() (*Node, error) {
	switch p.s.peek() {
	case '\'':
		return p.parseQuote()
	case '(':
		return p.parseList(')')
	case '[':
		return p.parseList(']')
	case '"':
		return p.parseString()
	default:
		return p.parseAtom(), nil
	}
}

func (p *parser) parseQuote() (*Node, error) {
	pos := p.s.position()
	p.s.next() // skip '\''
	p.s.skipWhitespace()
	if p.s.atEnd() {
		return nil, &SyntaxError{Kind: ExpectedAtom, Pos: p.s.position(), eof: true}
	}
	if ch := p.s.peek(); ch == ')' || ch == ']' {
		return nil, &SyntaxError{Kind: ExpectedAtom, Pos: p.s.position()}
	}
	inner, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NodeQuoted, Children: []*Node{inner}, Pos: pos}, nil
}

func (p *parser) parseList(closer rune) (*Node, error) {
	pos := p.s.position()
	p.s.next() // skip opener
	lastEnd := p.s.position()
	var children []*Node
	for {
		p.s.skipWhitespace()
		if p.s.atEnd() {
			return nil, &SyntaxError{Kind: ExpectedParen, Pos: lastEnd, Want: string(closer), eof: true}
		}
		switch ch := p.s.peek(); {
		case ch == closer:
			p.s.next()
			return &Node{Kind: NodeList, Children: children, Bracket: closer == ']', Pos: pos}, nil
		case ch == ')' || ch == ']':
			return nil, &SyntaxError{Kind: UnexpectedParen, Pos: p.s.position(), Want: string(closer)}
		}
		child, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		lastEnd = p.s.position()
	}
}

// parseString reads a "-delimited string. There are no escapes.
func (p *parser) parseString() (*Node, error) {
	pos := p.s.position()
	p.s.next() // skip opening '"'
	text, ok := p.s.scanUntil('"')
	if !ok {
		return nil, &SyntaxError{Kind: ExpectedQuote, Pos: pos, Want: `"`, eof: true}
	}
	p.s.next() // skip closing '"'
	return &Node{Kind: NodeString, Str: text, Pos: pos}, nil
}

func (p *parser) parseAtom() *Node {
	pos := p.s.position()
	token := p.s.scanToken()

	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return &Node{Kind: NodeInt, Int: i, Pos: pos}
	} else if errors.Is(err, strconv.ErrRange) {
		f, _ := strconv.ParseFloat(token, 64)
		return &Node{Kind: NodeFloat, Float: f, Pos: pos}
	}
	if strings.Contains(token, ".") {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return &Node{Kind: NodeFloat, Float: f, Pos: pos}
		}
	}
	if token == "nil" {
		return &Node{Kind: NodeNil, Pos: pos}
	}
	return &Node{Kind: NodeIdent, Str: token, Pos: pos}
}
