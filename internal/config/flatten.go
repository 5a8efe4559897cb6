package config

import (
	"net/url"
	"strings"
)

// secretKeys maps the flattened keys holding credentials to the masker that
// hides them in `config list` output.
var secretKeys = map[string]func(string) string{
	"assistant.api_key":  maskToken,
	"web_search.api_key": maskToken,
	"redis.url":          maskURL,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[key]
	return ok
}

// Flatten joins nested section maps into dot keys, e.g.
// {"run": {"chat_timeout": "1m0s"}} becomes {"run.chat_timeout": "1m0s"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// MaskSecrets returns a copy of flat with credentials hidden. API keys keep
// their last 4 characters; the Redis URL keeps everything but its password.
// Empty and non-string values pass through.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, isString := v.(string)
		if mask, ok := secretKeys[k]; ok && isString && s != "" {
			v = mask(s)
		}
		out[k] = v
	}
	return out
}

func maskToken(s string) string {
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}

// maskURL redacts the password of a connection URL. Unparseable values are
// masked like tokens.
func maskURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return maskToken(s)
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return s
	}
	return strings.Replace(u.Redacted(), "xxxxx", "***", 1)
}
