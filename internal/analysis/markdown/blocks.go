package markdown

import (
	"iter"
	"regexp"
	"strconv"
	"strings"
)

// Kind 表示一个渲染块的类型。
type Kind int

const (
	Paragraph Kind = iota
	Heading
	OrderedList
	UnorderedList
)

func (k Kind) String() string {
	switch k {
	case Heading:
		return "heading"
	case OrderedList:
		return "ordered_list"
	case UnorderedList:
		return "unordered_list"
	default:
		return "paragraph"
	}
}

// Block 是 AI 文本中的一个结构单元。Heading/Paragraph 使用 Text，列表使用 Items。
type Block struct {
	Kind  Kind
	Text  string
	Items []string
}

const headingMarker = "## "

var orderedItemPattern = regexp.MustCompile(`^\d+\.\s`)

// Parse 把自由文本按行扫描成块序列。
// 返回的序列是惰性的，每次 range 都会重新扫描输入。
func Parse(text string) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		var (
			pending  []string
			listKind Kind
		)

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			block := Block{Kind: listKind, Items: pending}
			pending = nil
			return yield(block)
		}

		for _, raw := range strings.Split(text, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}

			switch {
			case strings.HasPrefix(line, headingMarker):
				if !flush() || !yield(Block{Kind: Heading, Text: line[len(headingMarker):]}) {
					return
				}
			case orderedItemPattern.MatchString(line):
				if listKind != OrderedList && !flush() {
					return
				}
				listKind = OrderedList
				pending = append(pending, orderedItemPattern.ReplaceAllString(line, ""))
			case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
				if listKind != UnorderedList && !flush() {
					return
				}
				listKind = UnorderedList
				pending = append(pending, line[2:])
			default:
				if !flush() || !yield(Block{Kind: Paragraph, Text: line}) {
					return
				}
			}
		}

		flush()
	}
}

// ParseAll collects Parse into a slice.
func ParseAll(text string) []Block {
	var blocks []Block
	for block := range Parse(text) {
		blocks = append(blocks, block)
	}
	return blocks
}

// Serialize writes blocks back as lines that Parse reads to the same blocks.
func Serialize(blocks []Block) string {
	var lines []string
	for _, block := range blocks {
		switch block.Kind {
		case Heading:
			lines = append(lines, headingMarker+block.Text)
		case OrderedList:
			for i, item := range block.Items {
				lines = append(lines, strconv.Itoa(i+1)+". "+item)
			}
		case UnorderedList:
			for _, item := range block.Items {
				lines = append(lines, "- "+item)
			}
		default:
			lines = append(lines, block.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// RenderText 以纯文本形式渲染块，供终端工具使用。ansi 为 true 时强调片段加粗显示。
func RenderText(blocks []Block, ansi bool) string {
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch block.Kind {
		case Heading:
			b.WriteString(block.Text)
			b.WriteByte('\n')
			b.WriteString(strings.Repeat("=", len([]rune(block.Text))))
			b.WriteByte('\n')
		case OrderedList, UnorderedList:
			for n, item := range block.Items {
				marker := "  • "
				if block.Kind == OrderedList {
					marker = "  " + strconv.Itoa(n+1) + ". "
				}
				b.WriteString(marker)
				b.WriteString(renderSpans(Spans(item), ansi))
				b.WriteByte('\n')
			}
		default:
			b.WriteString(renderSpans(Spans(block.Text), ansi))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderSpans(spans []Span, ansi bool) string {
	var b strings.Builder
	for _, span := range spans {
		if ansi && span.Strong() {
			b.WriteString("\x1b[1m")
			b.WriteString(span.Text)
			b.WriteString("\x1b[0m")
			continue
		}
		b.WriteString(span.Text)
	}
	return b.String()
}

// PlainText 去掉所有标记，得到适合朗读的文本，每个标题、列表项、段落各占一行。
func PlainText(text string) string {
	var lines []string
	for block := range Parse(text) {
		switch block.Kind {
		case OrderedList, UnorderedList:
			for _, item := range block.Items {
				lines = append(lines, renderSpans(Spans(item), false))
			}
		default:
			lines = append(lines, renderSpans(Spans(block.Text), false))
		}
	}
	return strings.Join(lines, "\n")
}
