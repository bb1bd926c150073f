// Package termmd renders Markdown as styled terminal text.
//
// The terminal has no layout engine, so block elements are approximated:
//   - Headings become bold, underlined lines
//   - Tables become numbered "header: value" blocks
//   - Links and images render as "text (url)"
//   - Code blocks are indented and dimmed
package termmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// StyleFunc decorates a span of text.
type StyleFunc func(strs ...string) string

// Theme holds the decorations used by the renderer.
type Theme struct {
	Heading StyleFunc
	Bold    StyleFunc
	Italic  StyleFunc
	Strike  StyleFunc
	Code    StyleFunc
	Link    StyleFunc
	Quote   StyleFunc
	Rule    StyleFunc
	LineNo  StyleFunc
}

// DefaultTheme returns the lipgloss styles used by the TUI.
func DefaultTheme() Theme {
	return Theme{
		Heading: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("12")).Render,
		Bold:    lipgloss.NewStyle().Bold(true).Render,
		Italic:  lipgloss.NewStyle().Italic(true).Render,
		Strike:  lipgloss.NewStyle().Strikethrough(true).Render,
		Code:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render,
		Link:    lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("6")).Render,
		Quote:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render,
		Rule:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render,
		LineNo:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render,
	}
}

// PlainTheme returns a theme that adds no escape sequences.
func PlainTheme() Theme {
	plain := func(strs ...string) string { return strings.Join(strs, " ") }
	return Theme{
		Heading: plain, Bold: plain, Italic: plain, Strike: plain, Code: plain,
		Link: plain, Quote: plain, Rule: plain, LineNo: plain,
	}
}

// Render converts Markdown to terminal text with the default theme.
// Paragraphs are wrapped at width when width > 0.
func Render(markdown string, width int) string {
	return RenderWith(DefaultTheme(), markdown, width)
}

// RenderWith converts Markdown to terminal text using theme.
func RenderWith(theme Theme, markdown string, width int) string {
	source := []byte(markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	r := &renderer{source: source, theme: theme, width: width}
	r.walkBlock(doc)
	return strings.TrimRight(r.buf.String(), "\n ")
}

type renderer struct {
	source    []byte
	theme     Theme
	width     int
	buf       bytes.Buffer
	listDepth int
}

// ---------------------------------------------------------------------------
// Block-level rendering
// ---------------------------------------------------------------------------

func (r *renderer) walkBlock(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c)
	}
}

func (r *renderer) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.Document:
		r.walkBlock(n)

	case *ast.Heading:
		r.buf.WriteString(r.theme.Heading(r.inlineString(n)))
		r.buf.WriteString("\n\n")

	case *ast.Paragraph:
		r.buf.WriteString(r.wrap(r.inlineString(n)))
		r.buf.WriteString("\n\n")

	case *ast.TextBlock:
		r.buf.WriteString(r.inlineString(n))
		r.buf.WriteString("\n")

	case *ast.Blockquote:
		sub := &renderer{source: r.source, theme: r.theme, width: r.width}
		sub.walkBlock(n)
		for _, line := range strings.Split(strings.TrimRight(sub.buf.String(), "\n "), "\n") {
			r.buf.WriteString(r.theme.Quote("│ " + line))
			r.buf.WriteByte('\n')
		}
		r.buf.WriteByte('\n')

	case *ast.List:
		r.list(n)

	case *ast.ListItem:
		r.walkBlock(n)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(r.source)); lang != "" {
			r.buf.WriteString(r.theme.Rule("    ‹" + lang + "›"))
			r.buf.WriteByte('\n')
		}
		r.codeLines(n)
		r.buf.WriteByte('\n')

	case *ast.CodeBlock:
		r.codeLines(n)
		r.buf.WriteByte('\n')

	case *ast.ThematicBreak:
		r.buf.WriteString(r.theme.Rule("──────────"))
		r.buf.WriteString("\n\n")

	case *ast.HTMLBlock:
		r.rawLines(n)
		r.buf.WriteString("\n")

	default:
		if t, ok := node.(*east.Table); ok {
			r.table(t)
			return
		}
		if node.HasChildren() {
			r.walkBlock(node)
		}
	}
}

func (r *renderer) codeLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.source)), "\n")
		r.buf.WriteString("    ")
		r.buf.WriteString(r.theme.Code(line))
		r.buf.WriteByte('\n')
	}
}

func (r *renderer) rawLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.buf.Write(seg.Value(r.source))
	}
}

func (r *renderer) wrap(s string) string {
	if r.width <= 0 || r.listDepth > 0 {
		return s
	}
	return lipgloss.NewStyle().Width(r.width).Render(s)
}

// ---------------------------------------------------------------------------
// Inline rendering
// ---------------------------------------------------------------------------

func (r *renderer) inlineString(n ast.Node) string {
	sub := &renderer{source: r.source, theme: r.theme, width: r.width}
	sub.inlines(n)
	return sub.buf.String()
}

func (r *renderer) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c)
	}
}

func (r *renderer) inline(node ast.Node) {
	switch n := node.(type) {
	case *ast.Text:
		r.buf.Write(n.Text(r.source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			r.buf.WriteByte('\n')
		}

	case *ast.String:
		r.buf.Write(n.Value)

	case *ast.Emphasis:
		inner := r.inlineString(n)
		if n.Level == 2 {
			r.buf.WriteString(r.theme.Bold(inner))
		} else {
			r.buf.WriteString(r.theme.Italic(inner))
		}

	case *ast.CodeSpan:
		r.buf.WriteString(r.theme.Code(r.textContent(n)))

	case *ast.Link:
		label := r.inlineString(n)
		dest := string(n.Destination)
		if label == "" || label == dest {
			r.buf.WriteString(r.theme.Link(dest))
			return
		}
		fmt.Fprintf(&r.buf, "%s (%s)", label, r.theme.Link(dest))

	case *ast.AutoLink:
		r.buf.WriteString(r.theme.Link(string(n.URL(r.source))))

	case *ast.Image:
		alt := r.textContent(n)
		if alt == "" {
			alt = "image"
		}
		fmt.Fprintf(&r.buf, "[%s] (%s)", alt, r.theme.Link(string(n.Destination)))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			r.buf.Write(seg.Value(r.source))
		}

	default:
		switch v := node.(type) {
		case *east.Strikethrough:
			r.buf.WriteString(r.theme.Strike(r.inlineString(v)))
		case *east.TaskCheckBox:
			if v.IsChecked {
				r.buf.WriteString("[x] ")
			} else {
				r.buf.WriteString("[ ] ")
			}
		default:
			if node.HasChildren() {
				r.inlines(node)
			}
		}
	}
}

// textContent returns the plain-text content of a node tree.
func (r *renderer) textContent(n ast.Node) string {
	var buf bytes.Buffer
	r.collectText(n, &buf)
	return buf.String()
}

func (r *renderer) collectText(node ast.Node, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Text(r.source))
		case *ast.String:
			buf.Write(t.Value)
		default:
			r.collectText(c, buf)
		}
	}
}

// ---------------------------------------------------------------------------
// List rendering
// ---------------------------------------------------------------------------

func (r *renderer) list(n *ast.List) {
	idx := 0
	if n.Start > 0 {
		idx = n.Start - 1
	}
	indent := strings.Repeat("  ", r.listDepth)

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		item, ok := child.(*ast.ListItem)
		if !ok {
			continue
		}
		if n.IsOrdered() {
			idx++
			fmt.Fprintf(&r.buf, "%s%d. ", indent, idx)
		} else {
			r.buf.WriteString(indent)
			r.buf.WriteString("• ")
		}
		r.listItemContent(item)
		r.buf.WriteByte('\n')
	}
	if r.listDepth == 0 {
		r.buf.WriteByte('\n')
	}
}

func (r *renderer) listItemContent(item *ast.ListItem) {
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			if !first {
				r.buf.WriteByte('\n')
				r.buf.WriteString(strings.Repeat("  ", r.listDepth+1))
			}
			r.inlines(n)
			first = false
		case *ast.List:
			r.buf.WriteByte('\n')
			r.listDepth++
			r.list(n)
			r.listDepth--
			// list() ends every item with a newline; the caller adds its own.
			r.buf.Truncate(r.buf.Len() - 1)
		default:
			r.block(c)
			first = false
		}
	}
}

// ---------------------------------------------------------------------------
// Table rendering (GFM)
// ---------------------------------------------------------------------------

func (r *renderer) table(t *east.Table) {
	var headers []string
	var rows [][]string

	for child := t.FirstChild(); child != nil; child = child.NextSibling() {
		var cells []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(r.textContent(cell)))
		}
		switch child.(type) {
		case *east.TableHeader:
			headers = cells
		case *east.TableRow:
			rows = append(rows, cells)
		}
	}

	numCols := len(headers)
	for _, row := range rows {
		numCols = max(numCols, len(row))
	}
	if numCols == 0 {
		return
	}
	for len(headers) < numCols {
		headers = append(headers, "")
	}
	for i := range headers {
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("Column %d", i+1)
		}
	}
	if len(rows) == 0 {
		rows = [][]string{make([]string, numCols)}
	}

	for i, row := range rows {
		r.buf.WriteString(r.theme.Bold(fmt.Sprintf("%d.", i+1)))
		r.buf.WriteByte('\n')
		for j := 0; j < numCols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			fmt.Fprintf(&r.buf, "  %s: %s\n", r.theme.Bold(headers[j]), cell)
		}
	}
	r.buf.WriteByte('\n')
}

// Code renders source code with a right-aligned line-number gutter.
func Code(code string) string {
	return CodeWith(DefaultTheme(), code)
}

// CodeWith renders source code with line numbers using theme.
func CodeWith(theme Theme, code string) string {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return ""
	}
	lines := strings.Split(code, "\n")
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(theme.LineNo(fmt.Sprintf("%*d │", width, i+1)))
		b.WriteByte(' ')
		b.WriteString(strings.TrimRight(line, "\r"))
	}
	return b.String()
}
