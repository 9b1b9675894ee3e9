package capture

import (
	"fmt"
	"net/url"
)

// withCredentials embeds basic auth into raw so the browser sends it on
// the first request.
func withCredentials(raw, username, password string) (string, error) {
	if username == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("capture: parse URL: %w", err)
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}
