package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"score": 80, "feedback": "good"}`},
		{"fenced", "```json\n{\"score\": 80, \"feedback\": \"good\"}\n```"},
		{"bare fence", "```\n{\"score\": 80, \"feedback\": \"good\"}\n```"},
		{"padded", "\n  {\"score\": 80, \"feedback\": \"good\"}  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw, FormatJSON)
			require.True(t, res.OK())
			data := res.Data.(map[string]any)
			assert.Equal(t, 80.0, data["score"])
			assert.Equal(t, "good", data["feedback"])
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	res := Parse("the score is 80", FormatJSON)

	assert.False(t, res.OK())
	assert.Nil(t, res.Data)
	require.NotNil(t, res.Error)
	assert.Equal(t, "invalid_json", res.Error.Error)
	assert.Equal(t, "the score is 80", res.Error.Raw)
}

func TestParse_Text(t *testing.T) {
	res := Parse("  a summary \n", FormatText)
	assert.True(t, res.OK())
	assert.Equal(t, "a summary", res.Data)
}

func TestParse_Markdown(t *testing.T) {
	raw := "Intro line\n\n# Lesson\nBody one\n\n## Practice\n- item\n"
	res := Parse(raw, FormatMarkdown)
	require.True(t, res.OK())

	data := res.Data.(map[string]any)
	sections := data["sections"].([]Section)
	require.Len(t, sections, 3)
	assert.Equal(t, Section{Body: "Intro line"}, sections[0])
	assert.Equal(t, Section{Heading: "Lesson", Level: 1, Body: "Body one"}, sections[1])
	assert.Equal(t, Section{Heading: "Practice", Level: 2, Body: "- item"}, sections[2])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
