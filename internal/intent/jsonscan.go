package intent

import "encoding/json"

// ExtractJSON находит первую сбалансированную подстроку вида {...}, которая разбирается как JSON-объект.
// Классификатор может окружать JSON пояснениями, поэтому текст до и после объекта игнорируется.
// Фрагменты внутри несбалансированного или неразборчивого объекта не рассматриваются.
func ExtractJSON(raw string) (string, bool) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}

		end, ok := matchBrace(raw, start)
		if !ok {
			// Все последующие скобки лежат внутри незакрытого объекта.
			return "", false
		}

		candidate := raw[start : end+1]
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			return candidate, true
		}
		start = end
	}
	return "", false
}

// matchBrace возвращает индекс закрывающей скобки для объекта, начинающегося в start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
