// =============================================================================
// SAP Invoice Export - XML Writer Module
// =============================================================================
//
// This module turns a generic, order-preserving element tree into XML text.
// It knows nothing about invoices: callers build a Node tree whose Children
// slices already carry the element order the consumer expects, and the writer
// emits them exactly in that order.
//
// OUTPUT SHAPE:
//   <?xml version="1.0" encoding="UTF-8"?>
//   <ns1:Root xmlns:ns1="urn:...">
//     <Child>text</Child>
//     <Empty></Empty>                   <!-- never self-closing -->
//   </ns1:Root>
//
// =============================================================================

package xmlwriter

import (
	"regexp"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
)

// =============================================================================
// TREE
// =============================================================================

// Attr is a single attribute. Attributes are written in slice order.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of the tree. A node carries either Text or Children;
// when both are set Text is written first.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Node
}

// Element creates a node with the given children.
func Element(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

// Leaf creates a text-only node.
func Leaf(name, text string) *Node {
	return &Node{Name: name, Text: text}
}

// Add appends children and returns n for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr appends an attribute and returns n for chaining.
func (n *Node) Attr(name, value string) *Node {
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
	return n
}

// =============================================================================
// RENDER OPTIONS
// =============================================================================

// Options controls how the tree is written.
type Options struct {
	// Indent is the number of spaces per nesting level.
	// Default: 2
	Indent int

	// IncludeXMLDeclaration determines whether to write the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the version written in the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding written in the declaration. The canonical
	// casing is "UTF-8".
	// Default: "UTF-8"
	Encoding string
}

// DefaultOptions returns the default render options.
func DefaultOptions() Options {
	return Options{
		Indent:                2,
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
	}
}

// =============================================================================
// RENDERING
// =============================================================================

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*(:[A-Za-z_][A-Za-z0-9._-]*)?$`)

// Render writes the tree rooted at root using the default options.
func Render(root *Node) ([]byte, error) {
	return RenderWithOptions(root, DefaultOptions())
}

// RenderWithOptions writes the tree rooted at root.
//
// RETURNS:
//   - The UTF-8 encoded document.
//   - An error if the tree is empty or contains an invalid element or
//     attribute name. Nothing is written in that case.
func RenderWithOptions(root *Node, opts Options) ([]byte, error) {
	if root == nil {
		return nil, errors.New("nil root node")
	}

	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalEndTags = true
	doc.WriteSettings.CanonicalText = true

	if opts.IncludeXMLDeclaration {
		doc.CreateProcInst("xml", `version="`+opts.XMLVersion+`" encoding="`+opts.Encoding+`"`)
	}

	rootEl := doc.CreateElement(root.Name)
	if err := build(rootEl, root, "/"+root.Name); err != nil {
		return nil, err
	}

	if opts.Indent > 0 {
		doc.Indent(opts.Indent)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, errors.Wrap(err, "write document")
	}
	return out, nil
}

// build copies n into el, recursing depth-first in child order.
func build(el *etree.Element, n *Node, path string) error {
	if !nameRe.MatchString(n.Name) {
		return errors.Errorf("invalid element name %q at %s", n.Name, path)
	}
	for _, a := range n.Attrs {
		if !nameRe.MatchString(a.Name) {
			return errors.Errorf("invalid attribute name %q at %s", a.Name, path)
		}
		el.CreateAttr(a.Name, a.Value)
	}
	if n.Text != "" {
		el.SetText(n.Text)
	}
	for i, child := range n.Children {
		if child == nil {
			return errors.Errorf("nil child %d at %s", i, path)
		}
		if err := build(el.CreateElement(child.Name), child, path+"/"+child.Name); err != nil {
			return err
		}
	}
	return nil
}
