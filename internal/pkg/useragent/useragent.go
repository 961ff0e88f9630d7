// Package useragent classifies raw User-Agent headers into the device, OS and
// browser fields stored on page visits. Classification is best effort: garbage
// input yields the unknown device type and empty names, never an error.
package useragent

import (
	"strings"

	ua "github.com/mileusna/useragent"
)

// Device type values stored on page visits.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// Classification holds the parsed User-Agent fields.
type Classification struct {
	DeviceType     string
	OSName         string
	OSVersion      string
	BrowserName    string
	BrowserVersion string
	Bot            bool
}

// Classify parses a User-Agent header. An empty or unparsable string produces
// DeviceUnknown with empty OS/browser names.
func Classify(userAgent string) Classification {
	if strings.TrimSpace(userAgent) == "" {
		return Classification{DeviceType: DeviceUnknown}
	}

	parsed := ua.Parse(userAgent)

	// The parser echoes unrecognized tokens back as the browser name. A
	// parse that identified no device class, OS or bot recognized nothing.
	if !parsed.Bot && parsed.OS == "" && !parsed.Mobile && !parsed.Tablet && !parsed.Desktop {
		return Classification{DeviceType: DeviceUnknown}
	}

	return Classification{
		DeviceType:     deviceType(parsed),
		OSName:         normalizeOS(parsed.OS),
		OSVersion:      parsed.OSVersion,
		BrowserName:    normalizeBrowser(parsed.Name, parsed.Bot),
		BrowserVersion: parsed.Version,
		Bot:            parsed.Bot,
	}
}

func deviceType(parsed ua.UserAgent) string {
	switch {
	case parsed.Mobile:
		return DeviceMobile
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Desktop:
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

// normalizeBrowser lowercases and collapses mobile browser variants so
// breakdowns group the same product together.
func normalizeBrowser(name string, bot bool) string {
	if bot || name == "" {
		return ""
	}

	browser := strings.ToLower(name)
	switch browser {
	case "internet explorer":
		return "ie"
	case "mobile safari":
		return "safari"
	case "chrome mobile", "chrome mobile webview":
		return "chrome"
	case "firefox mobile":
		return "firefox"
	case "opera mini", "opera mobile":
		return "opera"
	case "edge mobile":
		return "edge"
	default:
		return browser
	}
}

// normalizeOS standardizes operating system names across UA variants.
func normalizeOS(os string) string {
	if os == "" {
		return ""
	}

	osLower := strings.ToLower(os)
	switch {
	case strings.Contains(osLower, "mac"), strings.Contains(osLower, "darwin"):
		return "MacOS"
	case strings.Contains(osLower, "linux"):
		return "Linux"
	case strings.Contains(osLower, "ios"), strings.Contains(osLower, "iphone os"):
		return "iOS"
	case strings.Contains(osLower, "android"):
		return "Android"
	case strings.Contains(osLower, "windows"):
		return "Windows"
	}

	return strings.ToUpper(os[:1]) + strings.ToLower(os[1:])
}
