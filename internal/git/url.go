package git

import (
	"fmt"
	"net/url"
)

// CloneURL embeds user in an HTTP(S) clone URL. The user is query-escaped,
// so a space becomes "+" and "@", "#" and ":" are percent-encoded. The token
// is never embedded; it is supplied through the credential helper.
func CloneURL(rawURL, user string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing clone url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported clone url scheme %q", u.Scheme)
	}
	u.User = nil
	s := u.String()
	if user == "" {
		return s, nil
	}
	prefix := u.Scheme + "://"
	return prefix + url.QueryEscape(user) + "@" + s[len(prefix):], nil
}
