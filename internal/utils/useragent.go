package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// ClientInfo holds the request log fields parsed from a User-Agent string
type ClientInfo struct {
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	OS         string `json:"os"`
	Platform   string `json:"platform"` // android, ios, windows, mac, linux
	Mobile     bool   `json:"mobile"`
	IsBot      bool   `json:"is_bot"`
}

// ParseUserAgent parses a User-Agent string
func ParseUserAgent(userAgent string) ClientInfo {
	if userAgent == "" {
		return ClientInfo{Browser: "Unknown", OS: "Unknown", Platform: "unknown"}
	}

	parser := ua.New(userAgent)
	browser, version := parser.Browser()
	if browser == "" {
		browser = "Unknown"
	}

	return ClientInfo{
		Browser:    browser,
		BrowserVer: version,
		OS:         getOS(parser),
		Platform:   getPlatform(parser),
		Mobile:     parser.Mobile(),
		IsBot:      parser.Bot(),
	}
}

// getOS extracts operating system name and version
func getOS(parser *ua.UserAgent) string {
	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		return "Unknown"
	}
	if osInfo.Version != "" {
		return osInfo.Name + " " + osInfo.Version
	}
	return osInfo.Name
}

// platforms is checked in order; "iphone os" must precede "mac os x"
var platforms = []struct{ match, platform string }{
	{"android", "android"},
	{"iphone os", "ios"},
	{"ios", "ios"},
	{"windows", "windows"},
	{"mac os x", "mac"},
	{"macos", "mac"},
	{"chrome os", "chromeos"},
	{"ubuntu", "linux"},
	{"linux", "linux"},
}

func getPlatform(parser *ua.UserAgent) string {
	osName := strings.ToLower(parser.OSInfo().Name)
	for _, p := range platforms {
		if strings.Contains(osName, p.match) {
			return p.platform
		}
	}
	return "unknown"
}
