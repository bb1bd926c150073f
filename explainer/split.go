package explainer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// SplitManim pulls the first python fenced block out of a model answer. It
// returns the markdown with that block removed and the block's source.
// When there is no such block the markdown is returned unchanged.
func SplitManim(markdown string) (string, string) {
	source := []byte(markdown)
	doc := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(source))

	var found *ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(block.Language(source)))
		if lang == "python" || lang == "py" {
			found = block
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	if found == nil {
		return markdown, ""
	}

	var code strings.Builder
	lines := found.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	start, end := fenceBounds(source, found)
	rest := strings.TrimSpace(string(source[:start]) + "\n\n" + string(source[end:]))
	return collapseBlankLines(rest), strings.TrimRight(code.String(), "\n")
}

// fenceBounds returns the byte range covering the whole fenced block,
// including the opening and closing fences. Only called for blocks with an
// info string.
func fenceBounds(source []byte, block *ast.FencedCodeBlock) (int, int) {
	start := lineStart(source, block.Info.Segment.Start)

	end := lineEnd(source, start)
	if n := block.Lines().Len(); n > 0 {
		end = block.Lines().At(n - 1).Stop
	}
	if end < len(source) {
		next := lineEnd(source, end)
		fence := strings.TrimSpace(string(source[end:next]))
		if strings.HasPrefix(fence, "```") || strings.HasPrefix(fence, "~~~") {
			end = next
		}
	}
	return start, end
}

func lineStart(source []byte, i int) int {
	for i > 0 && source[i-1] != '\n' {
		i--
	}
	return i
}

func lineEnd(source []byte, i int) int {
	for i < len(source) && source[i] != '\n' {
		i++
	}
	if i < len(source) {
		i++
	}
	return i
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
