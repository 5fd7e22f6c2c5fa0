package quack

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var characterIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ParseCookies accepts authentication cookies in any of the formats users
// actually paste: an EditThisCookie JSON export, a Netscape cookies.txt
// dump, or a raw Cookie header string.
func ParseCookies(input string) map[string]string {
	input = strings.TrimSpace(input)
	if input == "" {
		return map[string]string{}
	}

	if strings.HasPrefix(input, "[") {
		return parseJSONCookies(input)
	}

	if strings.Contains(input, "\t") || strings.HasPrefix(input, "#") {
		return parseNetscapeCookies(input)
	}

	return parseHeaderCookies(input)
}

func parseJSONCookies(input string) map[string]string {
	result := map[string]string{}

	var cookies []map[string]any
	if err := json.Unmarshal([]byte(input), &cookies); err != nil {
		return result
	}

	for _, cookie := range cookies {
		name, _ := cookie["name"].(string)
		value, _ := cookie["value"].(string)
		if name != "" {
			result[name] = value
		}
	}

	return result
}

// parseNetscapeCookies reads cookies.txt lines:
// domain flag path secure expiration name value (tab separated)
func parseNetscapeCookies(input string) map[string]string {
	result := map[string]string{}

	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) >= 7 {
			result[parts[5]] = parts[6]
		}
	}

	return result
}

func parseHeaderCookies(input string) map[string]string {
	result := map[string]string{}

	if strings.HasPrefix(strings.ToLower(input), "cookie:") {
		input = strings.TrimSpace(input[7:])
	}

	for _, pair := range strings.Split(input, ";") {
		pair = strings.TrimSpace(pair)
		name, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}

		name = strings.TrimSpace(name)
		if name != "" {
			result[name] = strings.TrimSpace(value)
		}
	}

	return result
}

// CookieHeader renders the cookie map as a Cookie header value, sorted so
// the output is stable.
func CookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+cookies[name])
	}

	return strings.Join(pairs, "; ")
}

// ExtractCharacterID pulls a character id out of whatever the user pasted:
// a bare numeric id, an alphanumeric sid, or a full character page URL.
// Returns "" when nothing id-shaped is found.
func ExtractCharacterID(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if strings.Contains(strings.ToLower(input), "quack") || strings.HasPrefix(input, "http") {
		if parsed, err := url.Parse(input); err == nil {
			parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")

			for i, part := range parts {
				if part == "character" && i+1 < len(parts) {
					return parts[i+1]
				}
			}

			if len(parts) == 1 && parts[0] != "" {
				return parts[0]
			}
		}
	}

	if characterIDPattern.MatchString(input) {
		return input
	}

	return ""
}
