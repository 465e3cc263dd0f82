package scrape

import "math/rand"

// headerProfile is a consistent set of request headers for one browser.
type headerProfile struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	SecChUa        string
	SecChPlatform  string
	Mobile         bool
}

var profiles = []headerProfile{
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.9",
		SecChUa:        `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChPlatform:  `"macOS"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.9",
		SecChUa:        `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChPlatform:  `"Windows"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 18_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Mobile/15E148 Safari/604.1",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.9",
		Mobile:         true,
	},
}

func randomProfile() headerProfile {
	return profiles[rand.Intn(len(profiles))]
}

// headers renders the profile. A non-empty userAgent replaces the profile's.
func (p headerProfile) headers(userAgent string) map[string]string {
	ua := p.UserAgent
	if userAgent != "" {
		ua = userAgent
	}
	h := map[string]string{
		"User-Agent":                ua,
		"Accept":                    p.Accept,
		"Accept-Language":           p.AcceptLanguage,
		"Upgrade-Insecure-Requests": "1",
	}
	if p.SecChUa != "" {
		h["Sec-Ch-Ua"] = p.SecChUa
		h["Sec-Ch-Ua-Platform"] = p.SecChPlatform
		h["Sec-Ch-Ua-Mobile"] = "?0"
		if p.Mobile {
			h["Sec-Ch-Ua-Mobile"] = "?1"
		}
	}
	return h
}
