package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/catalog"
)

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(catalog.MustDefault())

	system, user, err := r.Render("quick_grading", map[string]any{
		"question": "What is 2+2?",
		"expected": "4",
		"answer":   "four",
	})
	require.NoError(t, err)

	assert.Contains(t, system, "grader")
	assert.Contains(t, user, "What is 2+2?")
	assert.Contains(t, user, "Student answer:\nfour")
	assert.Equal(t, "json", r.Format("quick_grading"))
}

func TestRenderer_MissingVariable(t *testing.T) {
	r := NewRenderer(catalog.MustDefault())

	_, _, err := r.Render("quick_grading", map[string]any{"question": "q"})
	assert.ErrorIs(t, err, ErrRender)
}

func TestRenderer_UnknownTaskType(t *testing.T) {
	r := NewRenderer(catalog.MustDefault())

	_, _, err := r.Render("no_such_task", map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrNoTemplate)

	system, user, err := r.Render("no_such_task", map[string]any{"prompt": "raw text"})
	require.NoError(t, err)
	assert.Empty(t, system)
	assert.Equal(t, "raw text", user)
	assert.Equal(t, "text", r.Format("no_such_task"))
}

func TestRenderer_PicksUpReplacedTemplates(t *testing.T) {
	c := catalog.MustDefault()
	r := NewRenderer(c)

	_, user, err := r.Render("summarization", map[string]any{"text": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", user)

	tables := c.Snapshot()
	tables.Prompts["summarization"] = catalog.PromptTemplate{User: "TL;DR: {{.text}}", Format: "text"}
	require.NoError(t, c.Replace(tables))

	_, user, err = r.Render("summarization", map[string]any{"text": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "TL;DR: abc", user)
}

func TestRenderer_BadTemplate(t *testing.T) {
	c := catalog.MustDefault()
	tables := c.Snapshot()
	tables.Prompts["summarization"] = catalog.PromptTemplate{User: "{{.text"}
	require.NoError(t, c.Replace(tables))

	_, _, err := NewRenderer(c).Render("summarization", map[string]any{"text": "abc"})
	assert.ErrorIs(t, err, ErrRender)
}
