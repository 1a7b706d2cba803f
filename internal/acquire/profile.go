package acquire

import (
	"fmt"
	"strings"

	"github.com/desertthunder/nexus/internal/shared"
)

// MaxProfiles bounds the number of attempts a single acquisition can make.
const MaxProfiles = 6

// ClientProfile is a simulated client identity used for one download attempt.
//
// Name doubles as the YouTube player client passed to the downloader.
type ClientProfile struct {
	Name               string
	UserAgent          string
	Headers            map[string]string
	AcceptsCredentials bool
}

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 18_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Mobile/15E148 Safari/604.1"
)

var profileCatalog = []ClientProfile{
	{
		Name:      "tv",
		UserAgent: "Mozilla/5.0 (ChromiumStylePlatform) Cobalt/Version",
	},
	{
		Name:      "ios",
		UserAgent: "com.google.ios.youtube/19.45.4 (iPhone16,2; U; CPU iOS 18_1_0 like Mac OS X;)",
	},
	{
		Name:      "android",
		UserAgent: "com.google.android.youtube/19.44.38 (Linux; U; Android 11) gzip",
	},
	{
		Name:      "web_embedded",
		UserAgent: desktopUA,
		Headers:   map[string]string{"Referer": "https://www.youtube.com/"},
	},
	{
		Name:               "web",
		UserAgent:          desktopUA,
		Headers:            map[string]string{"Origin": "https://www.youtube.com", "Accept-Language": "en-US,en;q=0.9"},
		AcceptsCredentials: true,
	},
	{
		Name:               "mweb",
		UserAgent:          mobileUA,
		Headers:            map[string]string{"Origin": "https://m.youtube.com", "Accept-Language": "en-US,en;q=0.9"},
		AcceptsCredentials: true,
	},
}

// DefaultProfiles returns a copy of the full profile catalogue in its default rank order.
func DefaultProfiles() []ClientProfile {
	out := make([]ClientProfile, len(profileCatalog))
	for i, p := range profileCatalog {
		out[i] = p.clone()
	}
	return out
}

// LookupProfile finds a catalogue profile by case-insensitive name.
func LookupProfile(name string) (ClientProfile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range profileCatalog {
		if p.Name == name {
			return p.clone(), true
		}
	}
	return ClientProfile{}, false
}

// ProfilesByName resolves configured profile names, keeping their order.
//
// An empty list selects [DefaultProfiles]. Unknown or repeated names and lists longer than [MaxProfiles] are rejected.
func ProfilesByName(names []string) ([]ClientProfile, error) {
	if len(names) == 0 {
		return DefaultProfiles(), nil
	}
	if len(names) > MaxProfiles {
		return nil, fmt.Errorf("%w: at most %d client profiles, got %d", shared.ErrInvalidConfig, MaxProfiles, len(names))
	}

	seen := make(map[string]bool, len(names))
	profiles := make([]ClientProfile, 0, len(names))
	for _, name := range names {
		p, ok := LookupProfile(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown client profile %q", shared.ErrInvalidConfig, name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: client profile %q listed twice", shared.ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// OrderProfiles partitions profiles by credential support, keeping relative order within each group.
//
// With credentials, credential-capable profiles come first; without, the others do.
func OrderProfiles(profiles []ClientProfile, credentialed bool) []ClientProfile {
	preferred := make([]ClientProfile, 0, len(profiles))
	rest := make([]ClientProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.AcceptsCredentials == credentialed {
			preferred = append(preferred, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(preferred, rest...)
}

// ProfileNames lists the names of profiles in order.
func ProfileNames(profiles []ClientProfile) []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

func (p ClientProfile) clone() ClientProfile {
	if p.Headers != nil {
		h := make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			h[k] = v
		}
		p.Headers = h
	}
	return p
}
