package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format is the expected shape of a model response
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown response format %q", s)
	}
}

// ErrorPayload describes a response that could not be parsed
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// Section is one heading-delimited block of a Markdown response
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Body    string `json:"body"`
}

// Result is a parsed response. Exactly one of Data and Error is set.
type Result struct {
	Format Format        `json:"format"`
	Data   any           `json:"data,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// OK reports whether parsing succeeded
func (r Result) OK() bool {
	return r.Error == nil
}

// Parse converts raw model output to structured data. It never fails:
// malformed JSON yields a Result carrying an error payload.
func Parse(raw string, format Format) Result {
	switch format {
	case FormatJSON:
		return parseJSON(raw)
	case FormatMarkdown:
		return Result{Format: FormatMarkdown, Data: map[string]any{
			"content":  strings.TrimSpace(raw),
			"sections": splitSections(raw),
		}}
	default:
		return Result{Format: FormatText, Data: strings.TrimSpace(raw)}
	}
}

func parseJSON(raw string) Result {
	body := stripFences(raw)

	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return Result{Format: FormatJSON, Error: &ErrorPayload{
			Error:   "invalid_json",
			Message: err.Error(),
			Raw:     raw,
		}}
	}
	return Result{Format: FormatJSON, Data: data}
}

// stripFences removes a surrounding ``` or ```json code fence
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func splitSections(raw string) []Section {
	var (
		sections []Section
		current  *Section
		body     []string
	)
	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(strings.Join(body, "\n"))
			sections = append(sections, *current)
		}
		body = body[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level > 0 && level <= 6 && len(trimmed) > level && trimmed[level] == ' ' {
			flush()
			current = &Section{Heading: strings.TrimSpace(trimmed[level:]), Level: level}
			continue
		}
		if current == nil {
			current = &Section{}
		}
		body = append(body, line)
	}
	flush()

	out := sections[:0]
	for _, s := range sections {
		if s.Heading == "" && s.Body == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
