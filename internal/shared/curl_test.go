package shared

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantURL     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl 'https://www.youtube.com/' -H 'User-Agent: Mozilla/5.0'`,
			wantURL:     "https://www.youtube.com/",
			wantHeaders: map[string]string{"User-Agent": "Mozilla/5.0"},
		},
		{
			name:        "double quotes and long flag",
			curlCmd:     `curl "https://www.youtube.com/" --header "Accept-Language: en-US"`,
			wantURL:     "https://www.youtube.com/",
			wantHeaders: map[string]string{"Accept-Language": "en-US"},
		},
		{
			name:        "cookie header is kept apart from headers",
			curlCmd:     `curl https://www.youtube.com/ -H 'cookie: SID=abc; HSID=def' -H 'accept: */*'`,
			wantURL:     "https://www.youtube.com/",
			wantHeaders: map[string]string{"accept": "*/*"},
			wantCookie:  "SID=abc; HSID=def",
		},
		{
			name:        "-b wins over cookie header",
			curlCmd:     `curl 'https://www.youtube.com/' -H 'Cookie: old=1' -b 'new=2'`,
			wantURL:     "https://www.youtube.com/",
			wantHeaders: map[string]string{},
			wantCookie:  "new=2",
		},
		{
			name: "multiline with backslashes",
			curlCmd: `curl 'https://www.youtube.com/youtubei/v1/player' \
  -H 'accept: */*' \
  -H 'user-agent: Mozilla/5.0 (X11; Linux x86_64)' \
  --cookie 'SID=abc; __Secure-3PSID=xyz' \
  --data-raw '{"context":{}}'`,
			wantURL: "https://www.youtube.com/youtubei/v1/player",
			wantHeaders: map[string]string{
				"accept":     "*/*",
				"user-agent": "Mozilla/5.0 (X11; Linux x86_64)",
			},
			wantCookie: "SID=abc; __Secure-3PSID=xyz",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://www.youtube.com/`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("ParseCurlCommand() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCurlCommand() unexpected error = %v", err)
			}

			if result.URL != tc.wantURL {
				t.Errorf("ParseCurlCommand() url = %v, want %v", result.URL, tc.wantURL)
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("ParseCurlCommand() headers = %v, want %v", result.Headers, tc.wantHeaders)
			}

			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("ParseCurlCommand() header[%s] = %v, want %v", key, got, want)
				}
			}

			if result.Cookie != tc.wantCookie {
				t.Errorf("ParseCurlCommand() cookie = %v, want %v", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestCurlRequest(t *testing.T) {
	req := &CurlRequest{
		Headers: map[string]string{"user-agent": "Mozilla/5.0"},
		Cookie:  "SID=abc; HSID=def;  ; broken",
	}

	t.Run("Header is case insensitive", func(t *testing.T) {
		got, ok := req.Header("User-Agent")
		if !ok || got != "Mozilla/5.0" {
			t.Errorf("Header() = %q, %v", got, ok)
		}
		if _, ok := req.Header("Referer"); ok {
			t.Error("Header() found a header that is not present")
		}
	})

	t.Run("CookieNames", func(t *testing.T) {
		got := req.CookieNames()
		if !slices.Equal(got, []string{"SID", "HSID"}) {
			t.Errorf("CookieNames() = %v", got)
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")

		curlCmd := `curl 'https://www.youtube.com/' -H 'User-Agent: Mozilla/5.0' -b 'SID=abc'`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}

		if result.Cookie != "SID=abc" {
			t.Errorf("ParseCurlFile() cookie = %v", result.Cookie)
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("ParseCurlFile() expected error for nonexistent file")
		}
	})
}
