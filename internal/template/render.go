// Package template renders {{variable}} placeholders in message bodies.
package template

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Render substitutes every {{name}} in content with data[name]. Names are
// trimmed, so {{ name }} works too. Placeholders with no value are removed,
// and the result never contains a placeholder, even when a value does.
func Render(content string, data map[string]string) string {
	out := placeholder.ReplaceAllStringFunc(content, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		return data[name]
	})
	return Strip(out)
}

// Strip removes placeholders until none remain.
func Strip(s string) string {
	for placeholder.MatchString(s) {
		s = placeholder.ReplaceAllString(s, "")
	}
	return s
}

// HasPlaceholders reports whether s still contains a {{...}} placeholder.
func HasPlaceholders(s string) bool {
	return placeholder.MatchString(s)
}

// ExtractVariables lists the distinct variable names used in content, in
// order of first appearance.
func ExtractVariables(content string) []string {
	matches := placeholder.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		vars = append(vars, name)
	}
	return vars
}
