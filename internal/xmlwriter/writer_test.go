package xmlwriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKeepsChildOrder(t *testing.T) {
	root := Element("ns1:Root",
		Leaf("Zeta", "1"),
		Leaf("Alpha", "2"),
		Element("Group", Leaf("M", "3"), Leaf("B", "4")),
	).Attr("xmlns:ns1", "urn:test")

	out, err := Render(root)
	require.NoError(t, err)

	doc := string(out)
	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"), doc)
	assert.Contains(t, doc, `<ns1:Root xmlns:ns1="urn:test">`)
	assert.Contains(t, doc, "\n  <Zeta>1</Zeta>\n  <Alpha>2</Alpha>\n  <Group>\n    <M>3</M>\n    <B>4</B>\n  </Group>\n</ns1:Root>")
}

func TestRenderEmptyElementsAreNotSelfClosing(t *testing.T) {
	out, err := Render(Element("Root", Leaf("SalesOrder", ""), Element("Empty")))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<SalesOrder></SalesOrder>")
	assert.Contains(t, string(out), "<Empty></Empty>")
	assert.NotContains(t, string(out), "/>")
}

func TestRenderEscapesText(t *testing.T) {
	out, err := Render(Element("Root", Leaf("Text", "A & B <C>")))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Text>A &amp; B &lt;C&gt;</Text>")
}

func TestRenderWithOptions(t *testing.T) {
	out, err := RenderWithOptions(Element("Root", Leaf("A", "1")), Options{})
	require.NoError(t, err)
	assert.Equal(t, "<Root><A>1</A></Root>", string(out))

	opts := DefaultOptions()
	opts.Indent = 4
	out, err = RenderWithOptions(Element("Root", Leaf("A", "1")), opts)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n    <A>1</A>\n")
}

func TestRenderRejectsBadTrees(t *testing.T) {
	_, err := Render(nil)
	assert.Error(t, err)

	_, err = Render(Element("Root", Leaf("1Bad", "x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/Root/1Bad")

	_, err = Render(Element("Root").Attr("bad name", "x"))
	assert.Error(t, err)

	_, err = Render(Element("Root", nil))
	assert.Error(t, err)
}

func TestNodeHelpers(t *testing.T) {
	n := Element("Root").Add(Leaf("A", "1")).Add(Leaf("B", "2"))
	require.Len(t, n.Children, 2)
	assert.Equal(t, "B", n.Children[1].Name)
	assert.Equal(t, "2", n.Children[1].Text)

	n.Attr("x", "1").Attr("y", "2")
	assert.Equal(t, []Attr{{Name: "x", Value: "1"}, {Name: "y", Value: "2"}}, n.Attrs)
}
