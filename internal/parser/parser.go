// Package parser extracts the searchable parts of a Markdown note: optional
// YAML frontmatter, the first heading and #tags.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	tagRe     = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)
	headingRe = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
)

// Doc is the parsed form of a note body.
type Doc struct {
	Frontmatter map[string]any
	Body        string
	Heading     string
	Tags        []string
}

// Title returns the frontmatter title, then the first heading, then fallback.
func (d *Doc) Title(fallback string) string {
	if s, ok := d.Frontmatter["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if d.Heading != "" {
		return d.Heading
	}
	return fallback
}

// Parse never fails: unreadable frontmatter leaves the whole input as body.
func Parse(content string) *Doc {
	fm, body := splitFrontmatter(content)
	prose := stripFences(body)
	return &Doc{
		Frontmatter: fm,
		Body:        body,
		Heading:     firstHeading(prose),
		Tags:        collectTags(prose, fm),
	}
}

func splitFrontmatter(content string) (map[string]any, string) {
	const delim = "---"
	data := []byte(content)
	trimmed := bytes.TrimLeft(data, "\r\n")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, content
	}
	rest := trimmed[len(delim):]
	end := bytes.Index(rest, []byte("\n"+delim))
	if end < 0 {
		return nil, content
	}
	var fm map[string]any
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, content
	}
	body := rest[end+1+len(delim):]
	return fm, strings.TrimLeft(string(body), "\r\n")
}

// stripFences blanks fenced code blocks so '#' inside code is not read as a
// heading or tag.
func stripFences(body string) string {
	lines := strings.Split(body, "\n")
	in := false
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") {
			in = !in
			lines[i] = ""
			continue
		}
		if in {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return m[1]
		}
	}
	return ""
}

func collectTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if headingRe.MatchString(line) {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
	}
	return out
}
