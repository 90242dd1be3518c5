package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// Reasoning models may prefix the answer with a <think> block.
var thinkBlock = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

var errNoObject = errors.New("no JSON object in reply")

// ExtractObject returns the first balanced JSON object in a model reply,
// ignoring markdown fences and surrounding prose.
func ExtractObject(reply string) (string, error) {
	s := thinkBlock.ReplaceAllString(reply, "")
	for from := 0; from < len(s); {
		start := strings.IndexByte(s[from:], '{')
		if start < 0 {
			break
		}
		start += from
		end := closingBrace(s, start)
		if end < 0 {
			break
		}
		if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		from = start + 1
	}
	return "", errNoObject
}

// closingBrace finds the brace matching s[start], skipping string literals.
func closingBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// looseList accepts ["a","b"] or "a, b".
type looseList []string

func (l *looseList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("expected list or string: %w", err)
	}
	*l = strings.Split(joined, ",")
	return nil
}

// looseTags accepts {"k": any} or ["k:v", ...]. Non-string values are
// rendered with their JSON text.
type looseTags map[string]string

func (t *looseTags) UnmarshalJSON(data []byte) error {
	out := map[string]string{}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for k, raw := range obj {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				s = string(raw)
			}
			out[k] = s
		}
		*t = out
		return nil
	}
	var pairs []string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("expected object or list: %w", err)
	}
	for _, p := range pairs {
		k, v, _ := strings.Cut(p, ":")
		out[k] = v
	}
	*t = out
	return nil
}

type enrichmentReply struct {
	Description string    `json:"description"`
	Keywords    looseList `json:"keywords"`
	Tags        looseTags `json:"tags"`
	Terms       looseList `json:"business_glossary_terms"`
}

// ParseEnrichment decodes a model reply. Missing fields come back empty,
// never nil; blank and duplicate keywords and terms are dropped.
func ParseEnrichment(reply string) (*models.EnrichmentResult, error) {
	obj, err := ExtractObject(reply)
	if err != nil {
		return nil, NewError(ErrorTypeResponse, "malformed enrichment response", false, err)
	}
	var parsed enrichmentReply
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, NewError(ErrorTypeResponse, "malformed enrichment response", false, err)
	}

	result := models.EmptyEnrichment()
	result.Description = strings.TrimSpace(parsed.Description)
	result.Keywords = cleanList(parsed.Keywords)
	result.BusinessGlossaryTerms = cleanList(parsed.Terms)
	for k, v := range parsed.Tags {
		if k = strings.TrimSpace(k); k != "" {
			result.Tags[k] = strings.TrimSpace(v)
		}
	}
	return result, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
