package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMixedListKindsSplitBlocks(t *testing.T) {
	blocks := ParseAll("- a\n1. b\n- c")

	require.Len(t, blocks, 3)
	assert.Equal(t, Block{Kind: UnorderedList, Items: []string{"a"}}, blocks[0])
	assert.Equal(t, Block{Kind: OrderedList, Items: []string{"b"}}, blocks[1])
	assert.Equal(t, Block{Kind: UnorderedList, Items: []string{"c"}}, blocks[2])
}

func TestParseSameKindRunsMerge(t *testing.T) {
	cases := map[string]struct {
		input string
		kind  Kind
		items []string
	}{
		"dash":     {"- one\n- two\n- three", UnorderedList, []string{"one", "two", "three"}},
		"star":     {"* one\n- two", UnorderedList, []string{"one", "two"}},
		"ordered":  {"1. one\n2. two\n10. ten", OrderedList, []string{"one", "two", "ten"}},
		"blank gap": {"1. one\n\n   \n3. three", OrderedList, []string{"one", "three"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			blocks := ParseAll(tc.input)
			require.Len(t, blocks, 1)
			assert.Equal(t, tc.kind, blocks[0].Kind)
			assert.Equal(t, tc.items, blocks[0].Items)
		})
	}
}

func TestHeadingFlushesPendingList(t *testing.T) {
	blocks := ParseAll("- a\n- b\n## Title\n- c")

	require.Len(t, blocks, 3)
	assert.Equal(t, UnorderedList, blocks[0].Kind)
	assert.Equal(t, []string{"a", "b"}, blocks[0].Items)
	assert.Equal(t, Block{Kind: Heading, Text: "Title"}, blocks[1])
	assert.Equal(t, []string{"c"}, blocks[2].Items)
}

func TestParagraphAndUnsupportedSyntax(t *testing.T) {
	input := "  Breathe deeply.  \n```go\n| a | b |\n### small\n-not a list\n1.no space"
	blocks := ParseAll(input)

	require.Len(t, blocks, 6)
	for _, block := range blocks {
		assert.Equal(t, Paragraph, block.Kind)
	}
	assert.Equal(t, "Breathe deeply.", blocks[0].Text)
	assert.Equal(t, "### small", blocks[3].Text)
}

func TestClassificationPrecedence(t *testing.T) {
	// "## 1. x" is a heading, "1. - x" an ordered item, "* *x*" an unordered item.
	blocks := ParseAll("## 1. x\n1. - x\n* *x*")

	require.Len(t, blocks, 3)
	assert.Equal(t, Block{Kind: Heading, Text: "1. x"}, blocks[0])
	assert.Equal(t, Block{Kind: OrderedList, Items: []string{"- x"}}, blocks[1])
	assert.Equal(t, Block{Kind: UnorderedList, Items: []string{"*x*"}}, blocks[2])
}

func TestParseEmptyInput(t *testing.T) {
	assert.Empty(t, ParseAll(""))
	assert.Empty(t, ParseAll("\n  \n\t\n"))
}

func TestParseIsRestartable(t *testing.T) {
	seq := Parse("## Morning\n- stretch\n- water\nEnjoy.")

	var first, second []Block
	for block := range seq {
		first = append(first, block)
	}
	for block := range seq {
		second = append(second, block)
	}
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestParseStopsWhenConsumerBreaks(t *testing.T) {
	count := 0
	for range Parse("## a\n## b\n- c\n- d\ntext") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestSerializeRoundTripIsStable(t *testing.T) {
	inputs := []string{
		"## Sleep better\nA short intro with **bold** and *soft* words.\n1. Dim the lights\n2.  Read\n- tea\n* warm milk\nClosing line.",
		"- a\n1. b\n- c",
		"##    spaced heading\n-   indented item",
		"Just a paragraph",
		"3. start at three\n7. then seven\n## End",
	}

	for _, input := range inputs {
		parsed := ParseAll(input)
		reparsed := ParseAll(Serialize(parsed))
		assert.Equal(t, parsed, reparsed, "input: %q", input)
	}
}

func TestRenderText(t *testing.T) {
	blocks := ParseAll("## Plan\n1. **Walk**\n- tea\nRest *well*.")

	plain := RenderText(blocks, false)
	assert.Equal(t, "Plan\n====\n\n  1. Walk\n\n  • tea\n\nRest well.\n", plain)

	colored := RenderText(blocks, true)
	assert.True(t, strings.Contains(colored, "\x1b[1mWalk\x1b[0m"))
	assert.True(t, strings.Contains(colored, "\x1b[1mwell\x1b[0m"))
}

func TestRenderTextHeadingIsRaw(t *testing.T) {
	got := RenderText(ParseAll("## Use **breath** work"), true)
	assert.Equal(t, "Use **breath** work\n===================\n", got)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "heading", Heading.String())
	assert.Equal(t, "ordered_list", OrderedList.String())
	assert.Equal(t, "unordered_list", UnorderedList.String())
	assert.Equal(t, "paragraph", Paragraph.String())
}

func TestPlainTextStripsMarkers(t *testing.T) {
	got := PlainText("## Morning **Ritual**\n1. Drink *warm* water\n2. Stretch\nEnjoy.")
	assert.Equal(t, "Morning Ritual\nDrink warm water\nStretch\nEnjoy.", got)
}
