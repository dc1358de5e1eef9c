// Package parser extracts frontmatter, tags, and properties from Markdown content.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Tags        []string
	Props       map[string]string
	Title       string
	Created     time.Time // zero when no parseable created/date field
}

// Parse extracts frontmatter, body, tags, and scalar properties from raw
// Markdown bytes. Property values keep their literal string form (no type
// coercion) and matching against them is case-sensitive; callers that want
// normalisation must do it themselves.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
		Props:       extractProps(fm),
		Title:       deriveTitle(fm, body),
		Created:     extractCreated(fm),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	// Find end delimiter.
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	// Body starts after closing delimiter line.
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — return body only, no error.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	// Tags from frontmatter.
	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			add(v)
		}
	}

	// Inline #tags from body.
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// extractProps flattens scalar frontmatter fields into a string map.
// Nested maps and lists are skipped: preset property mappings compare
// plain string values only.
func extractProps(fm map[string]interface{}) map[string]string {
	if len(fm) == 0 {
		return nil
	}
	props := make(map[string]string)
	for k, v := range fm {
		switch val := v.(type) {
		case string:
			props[k] = val
		case bool:
			props[k] = fmt.Sprintf("%t", val)
		case int:
			props[k] = fmt.Sprintf("%d", val)
		case float64:
			props[k] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
		case time.Time:
			props[k] = val.Format(time.RFC3339)
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

// extractCreated returns the note creation date from the "created" or "date"
// frontmatter field, trying datetime formats before date-only ones.
func extractCreated(fm map[string]interface{}) time.Time {
	if fm == nil {
		return time.Time{}
	}
	for _, key := range []string{"created", "date"} {
		raw, ok := fm[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case time.Time:
			return v
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
				if ts, err := time.Parse(layout, v); err == nil {
					return ts
				}
			}
		}
	}
	return time.Time{}
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
