package atomicity

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
var braceBlockPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// extractJSON pulls a JSON object out of an LLM completion using three
// strategies in order, grounded on decomposition.py's
// _extract_json_from_response: (1) the whole response parses as JSON
// directly, (2) a fenced code block contains it, (3) a brace-matched
// substring contains it.
func extractJSON(response string) (map[string]interface{}, bool) {
	trimmed := strings.TrimSpace(response)

	var direct map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &direct); err == nil {
		return direct, true
	}

	if m := codeBlockPattern.FindStringSubmatch(trimmed); m != nil {
		var fenced map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fenced); err == nil {
			return fenced, true
		}
	}

	if m := braceBlockPattern.FindString(trimmed); m != "" {
		var braced map[string]interface{}
		if err := json.Unmarshal([]byte(m), &braced); err == nil {
			return braced, true
		}
	}

	return nil, false
}
