package tools

import (
	"bytes"
	"encoding/json"
	"strings"
)

// repairToolArgs and friends are adapted from the teacher's
// sdk/tools/tool.go / sdk/tools/args_normalize.go: brains occasionally emit
// slightly malformed tool-call JSON (unquoted string values, a bare string
// instead of an object, keys that don't quite match the schema). Rather than
// surfacing a transport-level failure, these heuristics repair what they can
// so the dispatch can still proceed; anything left over becomes a typed
// BadArgsError that round-trips to the brain per §4.3.
func repairToolArgs(toolName string, raw string) ([]byte, bool) {
	toolName = strings.TrimSpace(toolName)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []byte(`{}`), true
	}

	if strings.HasPrefix(raw, "{") {
		if repaired, ok := repairLooseJSONObject(raw); ok {
			return repaired, true
		}
	}

	switch toolName {
	case "read":
		b, _ := json.Marshal(map[string]any{"file_path": raw})
		return b, true
	case "write":
		b, _ := json.Marshal(map[string]any{"file_path": raw})
		return b, true
	case "bash":
		b, _ := json.Marshal(map[string]any{"command": raw})
		return b, true
	case "glob":
		b, _ := json.Marshal(map[string]any{"pattern": raw})
		return b, true
	case "grep":
		b, _ := json.Marshal(map[string]any{"pattern": raw})
		return b, true
	default:
		return nil, false
	}
}

func looksLikeUnknownFieldErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "unknown field")
}

func repairJSONKeysBySchema(schema map[string]any, raw []byte) ([]byte, bool) {
	if len(raw) == 0 || schema == nil {
		return nil, false
	}
	propsAny, ok := schema["properties"]
	if !ok {
		return nil, false
	}
	props, ok := propsAny.(map[string]any)
	if !ok || len(props) == 0 {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}

	expected := map[string]struct{}{}
	expectedNoDelims := map[string]string{}
	for k := range props {
		kk := strings.TrimSpace(k)
		if kk == "" {
			continue
		}
		expected[kk] = struct{}{}
		expectedNoDelims[normalizeKeyNoDelims(kk)] = kk
	}

	changed := false
	for k, v := range m {
		if _, ok := expected[k]; ok {
			continue
		}
		cand := normalizeCandidateKey(k)
		if cand != "" {
			if canon, ok := expectedNoDelims[normalizeKeyNoDelims(cand)]; ok {
				if _, exists := m[canon]; !exists {
					m[canon] = v
					changed = true
				}
				delete(m, k)
				continue
			}
		}
		if canon, ok := expectedNoDelims[normalizeKeyNoDelims(k)]; ok {
			if canon != k {
				if _, exists := m[canon]; !exists {
					m[canon] = v
					changed = true
				}
				delete(m, k)
			}
		}
	}
	if !changed {
		return nil, false
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, false
	}
	return b, true
}

func normalizeCandidateKey(k string) string {
	k = strings.TrimSpace(k)
	if k == "" {
		return ""
	}
	low := strings.ToLower(k)
	parts := strings.Fields(low)
	if len(parts) > 1 {
		same := true
		for i := 1; i < len(parts); i++ {
			if parts[i] != parts[0] {
				same = false
				break
			}
		}
		if same {
			return parts[0]
		}
		return strings.Join(parts, "_")
	}
	low = strings.ReplaceAll(low, "-", "_")
	low = strings.ReplaceAll(low, " ", "_")
	return low
}

func normalizeKeyNoDelims(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, k)
}

// repairLooseJSONObject wraps unquoted string values in a JSON-object-like
// string: {"path":/tmp} -> {"path":"/tmp"}. Intentionally conservative.
func repairLooseJSONObject(raw string) ([]byte, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, false
	}
	{
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.DisallowUnknownFields()
		var tmp json.RawMessage
		if err := dec.Decode(&tmp); err == nil {
			return tmp, true
		}
	}

	out := make([]byte, 0, len(raw)+16)
	inStr := false
	esc := false
	for i := 0; i < len(raw); {
		c := raw[i]
		if inStr {
			out = append(out, c)
			if esc {
				esc = false
				i++
				continue
			}
			if c == '\\' {
				esc = true
				i++
				continue
			}
			if c == '"' {
				inStr = false
			}
			i++
			continue
		}
		if c == '"' {
			inStr = true
			out = append(out, c)
			i++
			continue
		}
		if c != ':' {
			out = append(out, c)
			i++
			continue
		}

		out = append(out, c)
		i++
		for i < len(raw) {
			s := raw[i]
			if s == ' ' || s == '\n' || s == '\r' || s == '\t' {
				out = append(out, s)
				i++
				continue
			}
			break
		}
		if i >= len(raw) {
			break
		}
		n := raw[i]
		if n == '"' || n == '{' || n == '[' || n == '-' || (n >= '0' && n <= '9') {
			continue
		}
		if strings.HasPrefix(raw[i:], "true") || strings.HasPrefix(raw[i:], "false") || strings.HasPrefix(raw[i:], "null") {
			continue
		}
		out = append(out, '"')
		start := len(out)
		for i < len(raw) {
			cc := raw[i]
			if cc == ',' || cc == '}' {
				break
			}
			out = append(out, cc)
			i++
		}
		for len(out) > start {
			last := out[len(out)-1]
			if last == ' ' || last == '\n' || last == '\r' || last == '\t' {
				out = out[:len(out)-1]
				continue
			}
			break
		}
		out = append(out, '"')
	}

	dec := json.NewDecoder(bytes.NewReader(out))
	dec.DisallowUnknownFields()
	var fixed json.RawMessage
	if err := dec.Decode(&fixed); err != nil {
		return nil, false
	}
	return fixed, true
}
