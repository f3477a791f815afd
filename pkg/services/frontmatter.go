package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-cms/pkg/models"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrMissingFrontMatter is returned when a document has no frontmatter block.
var ErrMissingFrontMatter = errors.New("missing frontmatter")

// splitDelimited splits content on a frontmatter fence. The closing fence
// must sit on its own line, so a horizontal rule in the body never ends the
// block early.
func splitDelimited(str, fence string) (string, string, bool) {
	if !strings.HasPrefix(str, fence+"\n") && !strings.HasPrefix(str, fence+"\r\n") {
		return "", "", false
	}
	rest := str[len(fence):]
	rest = strings.TrimPrefix(strings.TrimPrefix(rest, "\r"), "\n")

	if strings.HasPrefix(rest, fence+"\n") || strings.HasPrefix(rest, fence+"\r\n") || rest == fence {
		// empty block
		return "", strings.TrimPrefix(rest, fence), true
	}

	idx := strings.Index(rest, "\n"+fence)
	for idx != -1 {
		after := rest[idx+1+len(fence):]
		if after == "" || strings.HasPrefix(after, "\n") || strings.HasPrefix(after, "\r\n") {
			return rest[:idx], after, true
		}
		next := strings.Index(rest[idx+1:], "\n"+fence)
		if next == -1 {
			break
		}
		idx = idx + 1 + next
	}
	return "", "", false
}

func ParseFrontMatter(content []byte) (map[string]interface{}, string, string, error) {
	str := normalizeLineEndings(string(content))
	// Check for YAML (---)
	if fm, body, ok := splitDelimited(str, "---"); ok {
		parsed := map[string]interface{}{}
		if err := yaml.Unmarshal([]byte(fm), &parsed); err == nil {
			if parsed == nil {
				parsed = map[string]interface{}{}
			}
			return sanitizeFrontMatter(parsed), strings.TrimSpace(body), "yaml", nil
		}
	}
	// Check for TOML (+++)
	if fm, body, ok := splitDelimited(str, "+++"); ok {
		parsed := map[string]interface{}{}
		if err := toml.Unmarshal([]byte(fm), &parsed); err == nil {
			return parsed, strings.TrimSpace(body), "toml", nil
		}
	}
	// Check for JSON ({)
	if strings.HasPrefix(strings.TrimSpace(str), "{") {
		var fm map[string]interface{}
		if err := json.Unmarshal(content, &fm); err == nil {
			return fm, "", "json", nil
		}
	}

	return nil, "", "", ErrMissingFrontMatter
}

// StripFrontMatter returns the document body, or the whole document when it
// has no frontmatter.
func StripFrontMatter(content []byte) string {
	if _, body, _, err := ParseFrontMatter(content); err == nil {
		return body
	}
	return strings.TrimSpace(normalizeLineEndings(string(content)))
}

// ConstructFileContent writes fm and body back out as a document in the given
// frontmatter format ("yaml" when empty). JSON documents carry no body.
func ConstructFileContent(fm map[string]interface{}, body string, format string) ([]byte, error) {
	normalizedFM := sanitizeFrontMatter(fm)
	if normalizedFM == nil {
		normalizedFM = map[string]interface{}{}
	}

	var buf bytes.Buffer
	switch format {
	case "yaml", "":
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("---\n")
	case "toml":
		buf.WriteString("+++\n")
		if err := toml.NewEncoder(&buf).Encode(normalizedFM); err != nil {
			return nil, err
		}
		buf.WriteString("+++\n")
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// encodeYAMLBlock writes v (usually a struct, to keep field order) as a
// fenced YAML block.
func encodeYAMLBlock(v interface{}) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	buf.WriteString("---\n")
	return buf.String(), nil
}

func sanitizeFrontMatter(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		sanitized[k] = sanitizeFrontMatterValue(v)
	}
	return sanitized
}

func sanitizeFrontMatterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeFrontMatter(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = sanitizeFrontMatterValue(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = sanitizeFrontMatterValue(v[i])
		}
		return slice
	default:
		return v
	}
}

func normalizeLineEndings(input string) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	return strings.ReplaceAll(input, "\r", "\n")
}

// Typed accessors for loosely-typed frontmatter values.

func fmString(fm map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := fm[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case time.Time:
			return v.UTC().Format(time.RFC3339)
		case int, int64, float64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func fmBool(fm map[string]interface{}, key string) bool {
	switch v := fm[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func fmInt(fm map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		switch v := fm[key].(type) {
		case int:
			if v > 0 {
				return v
			}
		case int64:
			if v > 0 {
				return int(v)
			}
		case float64:
			if v > 0 {
				return int(v)
			}
		case string:
			if n := models.ParseMinutes(v); n > 0 {
				return n
			}
		}
	}
	return 0
}

func fmStrings(fm map[string]interface{}, key string) []string {
	switch v := fm[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
