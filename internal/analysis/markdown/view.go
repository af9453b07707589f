package markdown

// SpanView 是行内片段的 JSON 视图。
type SpanView struct {
	Text   string `json:"text"`
	Style  Style  `json:"style"`
	Strong bool   `json:"strong"`
}

// BlockView 是块的 JSON 视图。Heading/Paragraph 填 Text，列表填 Items。
type BlockView struct {
	Kind  Kind         `json:"kind"`
	Text  []SpanView   `json:"text,omitempty"`
	Items [][]SpanView `json:"items,omitempty"`
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// MarshalText encodes the style by name.
func (s Style) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Views 解析 text 并拆分段落与列表项的行内片段，供前端直接渲染。
func Views(text string) []BlockView {
	views := []BlockView{}
	for block := range Parse(text) {
		view := BlockView{Kind: block.Kind}
		if block.Items != nil {
			view.Items = make([][]SpanView, 0, len(block.Items))
			for _, item := range block.Items {
				view.Items = append(view.Items, spanViews(item))
			}
		} else if block.Kind == Heading {
			// 标题原样显示，不拆分行内片段
			view.Text = []SpanView{{Text: block.Text, Style: Plain}}
		} else {
			view.Text = spanViews(block.Text)
		}
		views = append(views, view)
	}
	return views
}

func spanViews(line string) []SpanView {
	spans := Spans(line)
	out := make([]SpanView, 0, len(spans))
	for _, s := range spans {
		out = append(out, SpanView{Text: s.Text, Style: s.Style, Strong: s.Strong()})
	}
	return out
}
