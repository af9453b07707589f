package markdown

import (
	"regexp"
	"strings"
)

// Style 是行内片段的样式。
type Style int

const (
	Plain Style = iota
	Bold
	Emphasis
)

func (s Style) String() string {
	switch s {
	case Bold:
		return "bold"
	case Emphasis:
		return "emphasis"
	default:
		return "plain"
	}
}

// Span 是一行文本中的一个片段。
type Span struct {
	Style Style
	Text  string
}

// Strong reports whether the span renders with strong weight.
// 单星号片段与双星号片段渲染方式相同，Style 仍保留原始标记以便区分。
func (s Span) Strong() bool {
	return s.Style != Plain
}

var inlinePattern = regexp.MustCompile(`(\*\*.*?\*\*|\*.*?\*)`)

// Spans 把一行文本拆成 plain/bold/emphasis 片段，空片段会被丢弃。
func Spans(line string) []Span {
	var spans []Span
	cursor := 0
	for _, loc := range inlinePattern.FindAllStringIndex(line, -1) {
		if loc[0] > cursor {
			spans = append(spans, Span{Style: Plain, Text: line[cursor:loc[0]]})
		}
		spans = append(spans, classify(line[loc[0]:loc[1]]))
		cursor = loc[1]
	}
	if cursor < len(line) {
		spans = append(spans, Span{Style: Plain, Text: line[cursor:]})
	}
	return spans
}

func classify(token string) Span {
	if len(token) >= 4 && strings.HasPrefix(token, "**") && strings.HasSuffix(token, "**") {
		return Span{Style: Bold, Text: token[2 : len(token)-2]}
	}
	return Span{Style: Emphasis, Text: token[1 : len(token)-1]}
}
