package source

import "strings"

// RedactURL keeps scheme and host of a feed URL, which often embeds a token.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexAny(rest, "/?"); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
