package index

import "strings"

// docInfo is the parsed content of a /** ... */ comment.
type docInfo struct {
	summary string
	params  map[string]string
	returns string
}

// parseDocComment extracts the summary text, @param descriptions and
// the @returns description from a doc comment block. Parameter names
// match case insensitively.
func parseDocComment(text string) docInfo {
	info := docInfo{params: make(map[string]string)}
	body := strings.TrimPrefix(text, "/**")
	body = strings.TrimSuffix(body, "*/")
	// tags may share a line with the summary or each other
	body = strings.ReplaceAll(body, "@param", "\n@param")
	body = strings.ReplaceAll(body, "@return", "\n@return")

	var summary []string
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) {
		line := cleanDocLine(lines[i])
		if strings.HasPrefix(line, "@") {
			break
		}
		if line != "" {
			summary = append(summary, line)
		}
		i++
	}
	info.summary = strings.Join(summary, " ")

	for i < len(lines) {
		line := cleanDocLine(lines[i])
		i++
		switch {
		case strings.HasPrefix(line, "@param"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "@param"))
			name, desc := splitFirstWord(rest)
			if name != "" {
				info.params[strings.ToLower(name)] = desc
			}
		case strings.HasPrefix(line, "@returns"):
			info.returns = strings.TrimSpace(strings.TrimPrefix(line, "@returns"))
		case strings.HasPrefix(line, "@return"):
			info.returns = strings.TrimSpace(strings.TrimPrefix(line, "@return"))
		}
	}
	return info
}

// cleanDocLine strips the decorative leading asterisk some comment
// styles put on continuation lines.
func cleanDocLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "*")
	return strings.TrimSpace(line)
}

func splitFirstWord(s string) (string, string) {
	if idx := strings.IndexAny(s, " \t"); idx >= 0 {
		return s[:idx], strings.TrimSpace(s[idx+1:])
	}
	return s, ""
}
