// ABOUTME: Markdown to restricted-HTML renderer built on a goldmark AST walk
// ABOUTME: Maps each node kind to the small tag set chat transports accept

package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// markdown is shared between calls. The parser keeps no per-document state
// outside Parse, so concurrent use is safe.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// HTML renders Markdown into the restricted HTML dialect. It never fails:
// constructs it does not know are reduced to their inner text.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := markdown.Parser().Parse(text.NewReader(source))

	r := &htmlRenderer{source: source}
	_ = ast.Walk(document, r.walk)

	return strings.TrimSpace(r.out.String())
}

// htmlRenderer accumulates output for a single document.
type htmlRenderer struct {
	source []byte
	out    bytes.Buffer
}

func (r *htmlRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	// Block nodes.
	case ast.KindHeading:
		if entering {
			r.out.WriteString("<b>")
		} else {
			r.out.WriteString("</b>\n\n")
		}

	case ast.KindParagraph:
		if !entering {
			r.out.WriteString("\n\n")
		}

	case ast.KindTextBlock:
		// Tight list items hold a TextBlock instead of a Paragraph. A nested
		// block after it must start on its own line.
		if !entering && node.NextSibling() != nil {
			r.ensureNewline()
		}

	case ast.KindList:
		if entering {
			r.ensureNewline()
		} else if !isNested(node) {
			r.out.WriteString("\n")
		}

	case ast.KindListItem:
		if entering {
			r.out.WriteString("• ")
		} else {
			r.ensureNewline()
		}

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			code := strings.TrimSpace(r.lines(node))
			r.out.WriteString("<pre>")
			r.out.WriteString(textEscaper.Replace(code))
			r.out.WriteString("</pre>\n\n")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindBlockquote:
		if entering {
			r.out.WriteString("<blockquote>")
		} else {
			r.trimTrailingSpace()
			r.out.WriteString("</blockquote>\n")
		}

	case ast.KindThematicBreak:
		if entering {
			r.out.WriteString("\n---\n\n")
		}

	case ast.KindHTMLBlock:
		if entering {
			block := node.(*ast.HTMLBlock)
			r.out.WriteString(r.lines(block))
			if block.HasClosure() {
				r.out.Write(block.ClosureLine.Value(r.source))
			}
			r.ensureNewline()
		}
		return ast.WalkSkipChildren, nil

	// Inline nodes.
	case ast.KindText:
		if entering {
			t := node.(*ast.Text)
			value := t.Segment.Value(r.source)
			if !t.IsRaw() {
				value = util.UnescapePunctuations(value)
			}
			r.out.Write(value)
			if t.SoftLineBreak() || t.HardLineBreak() {
				r.out.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			r.out.Write(node.(*ast.String).Value)
		}

	case ast.KindEmphasis:
		tag := "i"
		if node.(*ast.Emphasis).Level >= 2 {
			tag = "b"
		}
		r.tag(tag, entering)

	case ast.KindCodeSpan:
		if entering {
			r.out.WriteString("<code>")
			r.out.WriteString(textEscaper.Replace(r.rawText(node)))
			r.out.WriteString("</code>")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			r.openAnchor(string(link.Destination))
		} else {
			r.out.WriteString("</a>")
		}

	case ast.KindAutoLink:
		if entering {
			link := node.(*ast.AutoLink)
			r.openAnchor(string(link.URL(r.source)))
			r.out.Write(link.Label(r.source))
			r.out.WriteString("</a>")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindImage:
		if entering {
			r.out.WriteString("[Image: ")
			r.out.WriteString(plainText(node, r.source))
			r.out.WriteString("]")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			for i := 0; i < raw.Segments.Len(); i++ {
				segment := raw.Segments.At(i)
				r.out.Write(segment.Value(r.source))
			}
		}
		return ast.WalkSkipChildren, nil

	// GFM extension nodes.
	case extast.KindStrikethrough:
		r.tag("s", entering)

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				r.out.WriteString("[x] ")
			} else {
				r.out.WriteString("[ ] ")
			}
		}

	case extast.KindTable:
		if entering {
			r.out.WriteString(renderTable(node, r.source))
			r.out.WriteString("\n\n")
		}
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (r *htmlRenderer) tag(name string, entering bool) {
	if entering {
		r.out.WriteString("<" + name + ">")
	} else {
		r.out.WriteString("</" + name + ">")
	}
}

func (r *htmlRenderer) openAnchor(url string) {
	r.out.WriteString(`<a href="`)
	r.out.WriteString(attrEscaper.Replace(url))
	r.out.WriteString(`">`)
}

// lines concatenates the raw source lines of a block node.
func (r *htmlRenderer) lines(node ast.Node) string {
	var b strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		b.Write(segment.Value(r.source))
	}
	return b.String()
}

// rawText joins the unprocessed text of a node's direct children. Code
// spans use it so backslashes stay literal.
func (r *htmlRenderer) rawText(node ast.Node) string {
	var b strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			value := c.Segment.Value(r.source)
			// A line ending inside a code span reads as a space.
			if n := len(value); n > 0 && value[n-1] == '\n' {
				b.Write(value[:n-1])
				b.WriteByte(' ')
				continue
			}
			b.Write(value)
		case *ast.String:
			b.Write(c.Value)
		}
	}
	return b.String()
}

func (r *htmlRenderer) ensureNewline() {
	if n := r.out.Len(); n > 0 && r.out.Bytes()[n-1] != '\n' {
		r.out.WriteByte('\n')
	}
}

// trimTrailingSpace drops trailing whitespace already written, so a closing
// tag hugs its content.
func (r *htmlRenderer) trimTrailingSpace() {
	b := r.out.Bytes()
	end := len(b)
	for end > 0 && (b[end-1] == '\n' || b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}
	r.out.Truncate(end)
}

// isNested reports whether a list sits inside another list item.
func isNested(node ast.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			return true
		}
	}
	return false
}

// plainText flattens a node's inline descendants to text with no markup.
// A link keeps its destination after the text, since no anchor carries it.
func plainText(node ast.Node, source []byte) string {
	var b strings.Builder
	var linkStarts []int
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if link, ok := n.(*ast.Link); ok {
			if entering {
				linkStarts = append(linkStarts, b.Len())
				return ast.WalkContinue, nil
			}
			start := linkStarts[len(linkStarts)-1]
			linkStarts = linkStarts[:len(linkStarts)-1]
			dest := string(link.Destination)
			if dest != "" && dest != b.String()[start:] {
				b.WriteString(" (" + dest + ")")
			}
			return ast.WalkContinue, nil
		}
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			value := t.Segment.Value(source)
			if !t.IsRaw() {
				value = util.UnescapePunctuations(value)
			}
			b.Write(value)
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
