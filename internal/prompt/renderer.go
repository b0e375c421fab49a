package prompt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"ai_orchestrator/internal/catalog"
)

var (
	// ErrNoTemplate is returned when a task type has no prompt template and no raw prompt
	ErrNoTemplate = errors.New("no prompt template for task type")

	// ErrRender is returned when a template fails to parse or execute
	ErrRender = errors.New("failed to render prompt")
)

// rawPromptVar lets callers bypass templating for task types without a template
const rawPromptVar = "prompt"

// Source supplies prompt templates
type Source interface {
	Prompt(taskType string) (catalog.PromptTemplate, bool)
}

// Renderer turns a task type and a variable bag into system and user prompts.
// Parsed templates are cached by source text so catalog reloads take effect.
type Renderer struct {
	source Source
	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// NewRenderer creates a renderer over a template source
func NewRenderer(source Source) *Renderer {
	return &Renderer{
		source: source,
		parsed: make(map[string]*template.Template),
	}
}

// Render executes the task type's templates. Missing variables are errors.
func (r *Renderer) Render(taskType string, vars map[string]any) (string, string, error) {
	tmpl, ok := r.source.Prompt(taskType)
	if !ok {
		if raw, ok := vars[rawPromptVar].(string); ok && strings.TrimSpace(raw) != "" {
			return "", raw, nil
		}
		return "", "", fmt.Errorf("%w: %s", ErrNoTemplate, taskType)
	}

	system, err := r.execute(taskType+"/system", tmpl.System, vars)
	if err != nil {
		return "", "", err
	}
	user, err := r.execute(taskType+"/user", tmpl.User, vars)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(user) == "" {
		return "", "", fmt.Errorf("%w: %s: empty prompt", ErrRender, taskType)
	}
	return system, user, nil
}

// Format returns the response format configured for a task type, "text" by default
func (r *Renderer) Format(taskType string) string {
	if tmpl, ok := r.source.Prompt(taskType); ok && tmpl.Format != "" {
		return tmpl.Format
	}
	return "text"
}

func (r *Renderer) execute(name, text string, vars map[string]any) (string, error) {
	if text == "" {
		return "", nil
	}

	t, err := r.compile(name, text)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRender, name, err)
	}

	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRender, name, err)
	}
	return b.String(), nil
}

func (r *Renderer) compile(name, text string) (*template.Template, error) {
	key := name + "\x00" + text

	r.mu.RLock()
	t, ok := r.parsed[key]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.parsed[key] = t
	r.mu.Unlock()
	return t, nil
}
