package acquire

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	cookieDomain   = ".youtube.com"
)

// CredentialBundle is the operator's session cookie material. It is immutable once built.
//
// A nil *CredentialBundle means no credentials and is safe to use.
type CredentialBundle struct {
	cookies string
}

// NewCredentialBundle wraps blob, returning nil when it is blank.
func NewCredentialBundle(blob string) *CredentialBundle {
	if strings.TrimSpace(blob) == "" {
		return nil
	}
	return &CredentialBundle{cookies: blob}
}

// LoadCredentials builds the process bundle from an inline blob or, failing that, the file at path.
//
// Both empty is not an error: the result is nil and acquisitions run uncredentialed.
func LoadCredentials(inline, path string) (*CredentialBundle, error) {
	if b := NewCredentialBundle(inline); b != nil {
		return b, nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	b := NewCredentialBundle(string(data))
	if b == nil {
		return nil, fmt.Errorf("cookies file %s is empty", path)
	}
	return b, nil
}

// Present reports whether the bundle holds any material.
func (c *CredentialBundle) Present() bool {
	return c != nil && c.cookies != ""
}

// String never reveals the cookie contents.
func (c *CredentialBundle) String() string {
	if !c.Present() {
		return "credentials(none)"
	}
	return fmt.Sprintf("credentials(<redacted>, %d bytes)", len(c.cookies))
}

// LogValue implements [slog.LogValuer] with the redacted form.
func (c *CredentialBundle) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Netscape renders the bundle as a Netscape cookie jar.
//
// Jar text is passed through with the header line ensured; a raw Cookie header value
// ("a=1; b=2", optionally prefixed with "Cookie:") becomes one session cookie per pair.
func (c *CredentialBundle) Netscape() string {
	if !c.Present() {
		return ""
	}
	if isNetscapeJar(c.cookies) {
		text := strings.TrimLeft(c.cookies, "\ufeff \t\r\n")
		if !strings.HasPrefix(text, "#") {
			text = netscapeHeader + "\n" + text
		}
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text
	}
	return headerToNetscape(c.cookies)
}

func isNetscapeJar(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if strings.HasPrefix(line, "# Netscape HTTP Cookie File") || strings.HasPrefix(line, "# HTTP Cookie File") {
			return true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return len(strings.Split(line, "\t")) == 7
	}
	return false
}

func headerToNetscape(header string) string {
	header = strings.TrimSpace(header)
	if name, value, ok := strings.Cut(header, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "cookie") {
		header = value
	}

	var b strings.Builder
	b.WriteString(netscapeHeader + "\n")
	for _, pair := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		fmt.Fprintf(&b, "%s\tTRUE\t/\tTRUE\t0\t%s\t%s\n", cookieDomain, name, strings.TrimSpace(value))
	}
	return b.String()
}
