package xml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

func (r *recorder) root(e *Element) bool {
	r.events = append(r.events, "open:"+e.Value)
	e.OnElement = r.root
	e.OnEnd = func() bool {
		r.events = append(r.events, "end")
		return true
	}
	return true
}

func (r *recorder) rootWithText(e *Element) bool {
	r.events = append(r.events, "open:"+e.Value)
	e.OnElement = r.rootWithText
	e.OnInnerXML = func(text string) bool {
		r.events = append(r.events, "text:"+text)
		return true
	}
	e.OnEnd = func() bool {
		r.events = append(r.events, "end")
		return true
	}
	return true
}

func parseAll(t *testing.T, root ElementDelegate, chunks ...string) {
	t.Helper()
	p := New(root)
	for _, chunk := range chunks {
		n, err := p.ParseChunk([]byte(chunk))
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
}

func TestParseNestedElementsWholeBuffer(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.root, `<a><b></b><c/></a>`)
	require.Equal(t, []string{
		"open:a", "open:b", "end", "open:c", "end", "end",
	}, r.events)
}

// Inner-text capture shares one buffer across a capturing scope's whole
// subtree (spec.md §4.8's "inner XML" opt-in is mixed-content: a parent's
// captured text includes its descendants' text runs, not just the text
// found directly between its own tags).
func TestParseInnerTextOptIn(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.rootWithText, `<a>hello <b>world</b> trailing</a>`)
	require.Equal(t, []string{
		"open:a", "open:b", "text:world", "end", "text:hello world trailing", "end",
	}, r.events)
}

func TestParseInnerTextTrimsTrailingWhitespace(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.rootWithText, "<a>  padded text  \n</a>")
	require.Equal(t, []string{"open:a", "text:  padded text", "end"}, r.events)
}

func TestParseAttributes(t *testing.T) {
	var got []Attribute
	p := New(func(e *Element) bool {
		got = append([]Attribute(nil), e.Attributes...)
		return true
	})
	_, err := p.ParseChunk([]byte(`<a x="1" y='two'/>`))
	require.NoError(t, err)
	require.Equal(t, []Attribute{{Key: "x", Value: "1"}, {Key: "y", Value: "two"}}, got)
}

func TestParseEntityDecodeInAttribute(t *testing.T) {
	var got string
	p := New(func(e *Element) bool {
		got = e.Attr("v")
		return true
	})
	_, err := p.ParseChunk([]byte(`<a v="&lt;x&gt; &amp; &quot;y&quot; &#65;"/>`))
	require.NoError(t, err)
	require.Equal(t, `<x> & "y" A`, got)
}

func TestParseEntitySplitAcrossChunks(t *testing.T) {
	var got string
	p := New(func(e *Element) bool {
		got = e.Attr("v")
		return true
	})
	_, err := p.ParseChunk([]byte(`<a v="x&am`))
	require.NoError(t, err)
	_, err = p.ParseChunk([]byte(`p;y"/>`))
	require.NoError(t, err)
	require.Equal(t, "x&y", got)
}

func TestParseNamespaceAliasResolution(t *testing.T) {
	var got string
	p := New(func(e *Element) bool {
		got = e.Value
		e.OnElement = func(inner *Element) bool {
			got = inner.Value
			return true
		}
		return true
	})
	_, err := p.ParseChunk([]byte(`<root xmlns:ns="urn:example"><ns:child/></root>`))
	require.NoError(t, err)
	require.Equal(t, "urn:example:child", got)
}

func TestParseUnresolvedNamespaceAliasErrors(t *testing.T) {
	p := New(func(e *Element) bool { return true })
	_, err := p.ParseChunk([]byte(`<ns:a/>`))
	require.Error(t, err)
}

func TestParseMismatchedCloseTagErrors(t *testing.T) {
	p := New(func(e *Element) bool { return true })
	_, err := p.ParseChunk([]byte(`<a></b>`))
	require.Error(t, err)
}

func TestParseChunkedIdenticalToWholeBuffer(t *testing.T) {
	doc := `<doc><item id="1">one</item><item id="2">two &amp; three</item></doc>`

	whole := &recorder{}
	parseAll(t, whole.rootWithText, doc)
	require.Contains(t, whole.events, "text:two & three")

	chunked := &recorder{}
	var chunks []string
	for i := range doc {
		chunks = append(chunks, string(doc[i]))
	}
	parseAll(t, chunked.rootWithText, chunks...)

	require.Equal(t, whole.events, chunked.events)
}

// TestParseEntityDecodeInElementText is the direct counterpart to
// TestParseEntityDecodeInAttribute: element text gets the same entity
// decoding as attribute values (spec.md §4.8).
func TestParseEntityDecodeInElementText(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.rootWithText, `<a>&lt;x&gt; &amp; &quot;y&quot; &#65;</a>`)
	require.Equal(t, []string{"open:a", `text:<x> & "y" A`, "end"}, r.events)
}

// TestParseEntityInElementTextSplitAcrossChunks mirrors
// TestParseEntitySplitAcrossChunks for element text instead of an
// attribute value.
func TestParseEntityInElementTextSplitAcrossChunks(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.rootWithText, `<a>x&am`, `p;y</a>`)
	require.Equal(t, []string{"open:a", "text:x&y", "end"}, r.events)
}

func TestParseCDATAPassthroughNoCallback(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.root, `<a><![CDATA[ignored <not-a-tag> ]]></a>`)
	require.Equal(t, []string{"open:a", "end"}, r.events)
}

func TestParseCommentPassthroughNoCallback(t *testing.T) {
	r := &recorder{}
	parseAll(t, r.root, `<a><!-- a comment --></a>`)
	require.Equal(t, []string{"open:a", "end"}, r.events)
}
