package generate

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// block is a top-level unit of a page: either a heading or a run of body text.
type block struct {
	heading bool
	text    string
}

var skippedCodeBlocks = map[string]struct{}{
	"@meta":  {},
	"@setup": {},
}

const mathStrippedChars = `\{}:$`

func parseMarkdown(markdown goldmark.Markdown, source []byte) []block {
	document := markdown.Parser().Parse(text.NewReader(source))

	var blocks []block
	for node := document.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			blocks = append(blocks, block{heading: true, text: strings.TrimSpace(inlineText(heading, source))})
			continue
		}

		content := strings.TrimSpace(blockText(node, source))
		if content == "" {
			continue
		}
		blocks = append(blocks, block{text: content})
	}

	return blocks
}

func blockText(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return inlineText(n, source)

	case *ast.FencedCodeBlock:
		language := string(n.Language(source))
		if _, skip := skippedCodeBlocks[language]; skip {
			return ""
		}
		code := linesText(n, source)
		if language == "math" {
			code = strings.Map(func(r rune) rune {
				if strings.ContainsRune(mathStrippedChars, r) {
					return -1
				}
				return r
			}, code)
		}
		return code

	case *ast.CodeBlock:
		return linesText(n, source)

	case *ast.HTMLBlock, *ast.ThematicBreak:
		return ""
	}

	var parts []string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if part := strings.TrimSpace(blockText(child, source)); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

func inlineText(node ast.Node, source []byte) string {
	var buf strings.Builder
	writeInline(&buf, node, source)
	return buf.String()
}

func writeInline(buf *strings.Builder, node ast.Node, source []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.HardLineBreak() {
				buf.WriteByte('\n')
			} else if n.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.Image:
			buf.WriteString("(Image: ")
			writeInline(buf, n, source)
			buf.WriteString(")")
		case *ast.AutoLink:
			buf.Write(n.Label(source))
		case *ast.RawHTML:
		default:
			writeInline(buf, n, source)
		}
	}
}

func linesText(node ast.Node, source []byte) string {
	var buf strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
	}
	return strings.TrimRight(buf.String(), "\n")
}
