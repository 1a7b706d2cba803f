// Utilities for extracting session cookies from a browser's "Copy as cURL" output.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+(?:'([^']+)'|"([^"]+)")`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+(?:'([^']+)'|"([^"]+)")`)
	curlURLRe    = regexp.MustCompile(`curl\s+(?:'([^']+)'|"([^"]+)"|(https?://\S+))`)
)

// CurlRequest holds what a captured cURL command sends: target URL, headers and cookies.
//
// Header keys keep the casing found in the command; the Cookie header is stored in Cookie only.
type CurlRequest struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file containing a cURL command and parses it.
func ParseCurlFile(path string) (*CurlRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(string(content))
}

// ParseCurlCommand extracts URL, headers and cookies from a cURL command line.
//
// A -b/--cookie argument wins over a Cookie header.
func ParseCurlCommand(cmd string) (*CurlRequest, error) {
	cmd = strings.ReplaceAll(cmd, "\\\r\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\\n", " ")

	req := &CurlRequest{Headers: make(map[string]string)}
	if m := curlURLRe.FindStringSubmatch(cmd); m != nil {
		req.URL = firstNonEmpty(m[1:]...)
	}

	var headerCookie string
	for _, m := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstNonEmpty(m[1:]...), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			headerCookie = value
			continue
		}
		req.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(cmd); m != nil {
		req.Cookie = firstNonEmpty(m[1:]...)
	} else {
		req.Cookie = headerCookie
	}

	if len(req.Headers) == 0 && req.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}
	return req, nil
}

// Header looks up a header by case-insensitive name.
func (c *CurlRequest) Header(name string) (string, bool) {
	for k, v := range c.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// CookieNames lists the cookie names in request order, never their values.
func (c *CurlRequest) CookieNames() []string {
	var names []string
	for _, pair := range strings.Split(c.Cookie, ";") {
		name, _, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
