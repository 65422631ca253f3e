// Package parser bridges tree-sitter concrete syntax trees to the generic
// kind-tagged trees arbor's walker consumes. The bundled adapter covers PHP;
// constructs the walker classifies get canonical kind tags, everything else
// keeps its grammar type and named children so generic recursion still finds
// nested declarations.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"github.com/jward/arbor/node"
)

// supportedExts maps file extensions to the bundled grammar.
var supportedExts = map[string]bool{
	".php":   true,
	".php4":  true,
	".php5":  true,
	".phtml": true,
}

// Supported reports whether the bundled parser handles the file, based on
// its extension.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// PHP parses PHP source into generic node trees using tree-sitter.
// A PHP value is safe for concurrent use; the underlying tree-sitter parser
// is not, so parses are serialized.
type PHP struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewPHP returns a parser with the PHP grammar loaded.
func NewPHP() *PHP {
	p := sitter.NewParser()
	p.SetLanguage(php.GetLanguage())
	return &PHP{parser: p}
}

// Parse produces the tagged tree for one source file.
func (p *PHP) Parse(ctx context.Context, filename string, src []byte) (*node.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	defer tree.Close()

	return p.convertProgram(tree.RootNode(), src), nil
}

func span(n *sitter.Node) *node.Range {
	return &node.Range{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func newNode(kind string, n *sitter.Node) *node.Node {
	return &node.Node{Kind: kind, Range: span(n)}
}

// convertProgram converts the root, grouping statement-form namespace
// declarations (`namespace App;`) with the statements that follow them, so
// the walker sees those statements as the namespace's children.
func (p *PHP) convertProgram(root *sitter.Node, src []byte) *node.Node {
	prog := newNode(node.KindProgram, root)

	var top []*node.Node
	var open *node.Node // statement-form namespace collecting children
	var kids []*node.Node

	flush := func() {
		if open == nil {
			return
		}
		if len(kids) > 0 {
			open.Set("children", kids)
			open.Range.End = kids[len(kids)-1].Span().End
		}
		top = append(top, open)
		open, kids = nil, nil
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		cn := p.convert(child, src)
		if cn == nil {
			continue
		}
		if cn.Kind == node.KindNamespace && cn.Node("body") == nil {
			flush()
			open = cn
			continue
		}
		if open != nil {
			kids = append(kids, cn)
		} else {
			top = append(top, cn)
		}
	}
	flush()

	return prog.Set("children", top)
}

// convert maps one tree-sitter node. Returns nil for nodes that carry no
// symbol information at all (plain comments, text interleaving).
func (p *PHP) convert(n *sitter.Node, src []byte) *node.Node {
	switch n.Type() {
	case "comment":
		text := n.Content(src)
		if strings.HasPrefix(text, "/**") {
			return newNode(node.KindDoc, n).Set("text", text)
		}
		return nil

	case "text", "php_tag", "text_interpolation":
		return nil

	case "namespace_definition":
		out := newNode(node.KindNamespace, n)
		if name := n.ChildByFieldName("name"); name != nil {
			out.Set("name", name.Content(src))
		}
		if body := n.ChildByFieldName("body"); body != nil {
			out.Set("body", p.convertBlock(body, src))
		}
		return out

	case "class_declaration":
		return p.convertDeclaration(node.KindClass, n, src)
	case "interface_declaration":
		return p.convertDeclaration(node.KindInterface, n, src)
	case "trait_declaration":
		return p.convertDeclaration(node.KindTrait, n, src)
	case "function_definition", "method_declaration":
		return p.convertDeclaration(node.KindFunction, n, src)

	case "expression_statement":
		// Unwrap: the walker cares about the expression, not the statement.
		if n.NamedChildCount() == 1 {
			return p.convert(n.NamedChild(0), src)
		}
		return p.convertGeneric(n, src)

	case "assignment_expression":
		left := n.ChildByFieldName("left")
		if left == nil || left.Type() != "variable_name" {
			return p.convertGeneric(n, src)
		}
		out := newNode(node.KindAssign, n)
		out.Set("left", newNode(node.KindVariable, left).
			Set("name", strings.TrimPrefix(left.Content(src), "$")))
		if right := n.ChildByFieldName("right"); right != nil {
			if rn := p.convert(right, src); rn != nil {
				out.Set("right", rn)
			}
		}
		return out

	case "if_statement":
		return p.convertIf(n, src)

	case "try_statement":
		return p.convertTry(n, src)

	case "include_expression", "include_once_expression",
		"require_expression", "require_once_expression":
		return p.convertInclude(n, src)

	case "compound_statement", "declaration_list":
		return p.convertBlock(n, src)

	default:
		return p.convertGeneric(n, src)
	}
}

func (p *PHP) convertDeclaration(kind string, n *sitter.Node, src []byte) *node.Node {
	out := newNode(kind, n)
	if name := n.ChildByFieldName("name"); name != nil {
		out.Set("name", name.Content(src))
	}
	if body := n.ChildByFieldName("body"); body != nil {
		out.Set("body", p.convertBlock(body, src))
	}
	return out
}

func (p *PHP) convertBlock(n *sitter.Node, src []byte) *node.Node {
	out := newNode(node.KindBlock, n)
	if kids := p.convertChildren(n, src); len(kids) > 0 {
		out.Set("children", kids)
	}
	return out
}

func (p *PHP) convertGeneric(n *sitter.Node, src []byte) *node.Node {
	out := newNode(n.Type(), n)
	if kids := p.convertChildren(n, src); len(kids) > 0 {
		out.Set("children", kids)
	}
	return out
}

func (p *PHP) convertChildren(n *sitter.Node, src []byte) []*node.Node {
	var kids []*node.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if cn := p.convert(n.NamedChild(i), src); cn != nil {
			kids = append(kids, cn)
		}
	}
	return kids
}

// convertIf maps the condition-less branch structure the walker expects:
// a body and an optional alternate. else-if chains become nested if nodes.
func (p *PHP) convertIf(n *sitter.Node, src []byte) *node.Node {
	out := newNode(node.KindIf, n)
	if body := n.ChildByFieldName("body"); body != nil {
		out.Set("body", p.convert(body, src))
	}

	// Alternative clauses appear as named children; fold them right to left
	// so `elseif` chains nest the way the source reads.
	var alt *node.Node
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		c := n.NamedChild(i)
		switch c.Type() {
		case "else_clause":
			if body := c.ChildByFieldName("body"); body != nil {
				alt = p.convert(body, src)
			}
		case "else_if_clause":
			ifn := newNode(node.KindIf, c)
			if body := c.ChildByFieldName("body"); body != nil {
				ifn.Set("body", p.convert(body, src))
			}
			if alt != nil {
				ifn.Set("alternate", alt)
			}
			alt = ifn
		}
	}
	if alt != nil {
		out.Set("alternate", alt)
	}
	return out
}

func (p *PHP) convertTry(n *sitter.Node, src []byte) *node.Node {
	out := newNode(node.KindTry, n)
	if body := n.ChildByFieldName("body"); body != nil {
		out.Set("body", p.convert(body, src))
	}
	var catches []*node.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "catch_clause":
			catch := newNode(node.KindCatch, c)
			if body := c.ChildByFieldName("body"); body != nil {
				catch.Set("body", p.convert(body, src))
			}
			catches = append(catches, catch)
		case "finally_clause":
			if body := c.ChildByFieldName("body"); body != nil {
				out.Set("always", p.convert(body, src))
			}
		}
	}
	if len(catches) > 0 {
		out.Set("catches", catches)
	}
	return out
}

// convertInclude records the directive with its once/require flags and the
// raw target. String literal targets are unquoted so relink can match them
// against repository paths.
func (p *PHP) convertInclude(n *sitter.Node, src []byte) *node.Node {
	out := newNode(node.KindInclude, n)
	kind := n.Type()
	out.Set("once", strings.Contains(kind, "once"))
	out.Set("require", strings.HasPrefix(kind, "require"))

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		for c != nil && c.Type() == "parenthesized_expression" && c.NamedChildCount() > 0 {
			c = c.NamedChild(0)
		}
		if c == nil {
			continue
		}
		switch c.Type() {
		case "string", "encapsed_string":
			out.Set("target", strings.Trim(c.Content(src), `"'`))
		default:
			out.Set("target", c.Content(src))
		}
		break
	}
	return out
}
