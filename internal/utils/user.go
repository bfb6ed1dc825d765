package utils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 30
)

// @ must start the text or follow a non-word character, so e-mail addresses
// are skipped. The name must end at a word boundary: an overlong handle is
// not a mention of its first 30 characters.
var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_]{3,30})\b`)

var usernameInvalid = regexp.MustCompile(`[^a-z0-9_]+`)

// ExtractMentions 提取内容中 @ 的用户名, 小写去重, 保持出现顺序
func ExtractMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// NormalizeUsername lowercases name and strips characters a mention could
// not match. It returns "" when too little is left.
func NormalizeUsername(name string) string {
	name = usernameInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	name = strings.Trim(name, "_")
	if len(name) > usernameMaxLen {
		name = name[:usernameMaxLen]
	}
	if len(name) < usernameMinLen {
		return ""
	}
	return name
}

// FallbackUsername 用户名缺失或冲突时使用的默认用户名
func FallbackUsername(id uuid.UUID) string {
	return "user_" + strings.ReplaceAll(id.String(), "-", "")[:12]
}
