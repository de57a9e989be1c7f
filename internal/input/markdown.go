package input

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown reduces a markdown document to the text worth reading aloud.
// Code blocks, HTML and link targets are dropped; headings, paragraphs and
// list items end a sentence so the segmenter can split on them.
func Markdown(src string) string {
	reader := text.NewReader([]byte(src))
	doc := goldmark.New().Parser().Parse(reader)

	var buf bytes.Buffer
	walkNode(doc, reader.Source(), &buf)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// walkNode recursively walks the AST and extracts text content.
func walkNode(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.Image:
		// Alt text only.
		walkChildren(n, source, buf)
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem:
		walkChildren(n, source, buf)
		endSentence(buf)
		return

	case *ast.ThematicBreak:
		endSentence(buf)
		return
	}

	walkChildren(node, source, buf)
}

func walkChildren(node ast.Node, source []byte, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkNode(c, source, buf)
	}
}

// endSentence terminates the text written so far unless it already ends
// with sentence punctuation.
func endSentence(buf *bytes.Buffer) {
	buf.Truncate(len(bytes.TrimRight(buf.Bytes(), " ")))
	if buf.Len() == 0 {
		return
	}
	last, _ := utf8.DecodeLastRune(buf.Bytes())
	if !strings.ContainsRune(".!?:;。！？；：…", last) {
		if last >= 0x3000 {
			buf.WriteString("。")
		} else {
			buf.WriteString(".")
		}
	}
	buf.WriteString(" ")
}
