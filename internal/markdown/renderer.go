package markdown

import (
	"bytes"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Renderer flattens Markdown into the plain text a slide text box can hold.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer that understands GitHub Flavored Markdown.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// PlainText strips Markdown syntax from src, keeping text, link labels, image
// alt text and code. Block elements end with a newline.
func (r *Renderer) PlainText(src string) string {
	if src == "" {
		return ""
	}
	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	endLine := func() {
		if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.Label(source))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				endLine()
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *ast.ListItem:
			if !entering {
				endLine()
			}
		}
		return ast.WalkContinue, nil
	})

	out := blankRuns.ReplaceAll(bytes.TrimSpace(buf.Bytes()), []byte("\n\n"))
	return string(out)
}
