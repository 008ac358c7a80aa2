package faq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		document string
		want     []Entry
	}{
		{
			name: "basic pairs",
			document: `# Support

## FAQ

Q: How do I install the app?
A: Download it from the releases page.

Q: Where are logs stored?
A: In the data directory.
`,
			want: []Entry{
				{Question: "How do I install the app?", Answer: "Download it from the releases page."},
				{Question: "Where are logs stored?", Answer: "In the data directory."},
			},
		},
		{
			name: "russian markers",
			document: `## FAQ

Вопрос: Как сбросить пароль?
Ответ: Нажмите «Забыли пароль» на странице входа.
`,
			want: []Entry{
				{Question: "Как сбросить пароль?", Answer: "Нажмите «Забыли пароль» на странице входа."},
			},
		},
		{
			name: "multiline answer with blockquotes",
			document: `## FAQ

Q: What payment methods are supported?
A: We accept cards,
> bank transfers,
> and invoices.
`,
			want: []Entry{
				{Question: "What payment methods are supported?", Answer: "We accept cards, bank transfers, and invoices."},
			},
		},
		{
			name: "section ends at next heading",
			document: `## FAQ

Q: One?
A: Yes.

## Pricing

Q: Not a FAQ entry?
A: Should be ignored.
`,
			want: []Entry{
				{Question: "One?", Answer: "Yes."},
			},
		},
		{
			name: "duplicate question keeps position, last answer wins",
			document: `## FAQ

Q: Same question?
A: First answer.

Q: Other question?
A: Other answer.

Q: Same question?
A: Second answer.
`,
			want: []Entry{
				{Question: "Same question?", Answer: "Second answer."},
				{Question: "Other question?", Answer: "Other answer."},
			},
		},
		{
			name:     "no FAQ section",
			document: "# Support\n\nJust prose, no FAQ heading.\n",
			want:     nil,
		},
		{
			name: "question without answer dropped",
			document: `## FAQ

Q: Orphan question?

Q: Complete?
A: Yes.
`,
			want: []Entry{
				{Question: "Complete?", Answer: "Yes."},
			},
		},
		{
			name:     "empty document",
			document: "",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse(tt.document))
		})
	}
}

func TestParseNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	entries := Parse("## FAQ\n\nQ:   How   do I \t install?\nA:  Run   the setup.\n")
	require.Len(t, entries, 1)
	assert.Equal(t, "How do I install?", entries[0].Question)
	assert.Equal(t, "Run the setup.", entries[0].Answer)
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"  leading and trailing  ",
		"internal\t\twhitespace\n runs",
		"already normal",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
