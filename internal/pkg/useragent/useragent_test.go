package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDesktopChrome(t *testing.T) {
	c := Classify("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	assert.Equal(t, DeviceDesktop, c.DeviceType)
	assert.Equal(t, "Windows", c.OSName)
	assert.Equal(t, "chrome", c.BrowserName)
	assert.False(t, c.Bot)
}

func TestClassifyIPhoneSafari(t *testing.T) {
	c := Classify("Mozilla/5.0 (iPhone; CPU iPhone OS 13_2_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0.3 Mobile/15E148 Safari/604.1")

	assert.Equal(t, DeviceMobile, c.DeviceType)
	assert.Equal(t, "iOS", c.OSName)
	assert.Equal(t, "safari", c.BrowserName)
}

func TestClassifyIPad(t *testing.T) {
	c := Classify("Mozilla/5.0 (iPad; CPU OS 12_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.1 Mobile/15E148 Safari/604.1")

	assert.Equal(t, DeviceTablet, c.DeviceType)
}

func TestClassifyGarbageFallsBackToUnknown(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-real-user-agent", "curl/7.68.0"} {
		c := Classify(raw)
		assert.Equal(t, DeviceUnknown, c.DeviceType, "input %q", raw)
		assert.Empty(t, c.OSName, "input %q", raw)
		assert.Empty(t, c.BrowserName, "input %q", raw)
	}
}

func TestClassifyBotHasNoBrowserName(t *testing.T) {
	c := Classify("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

	assert.True(t, c.Bot)
	assert.Empty(t, c.BrowserName)
}

func TestNormalizeOSVariants(t *testing.T) {
	assert.Equal(t, "MacOS", normalizeOS("Mac OS X"))
	assert.Equal(t, "Linux", normalizeOS("GNU/Linux"))
	assert.Equal(t, "Windows", normalizeOS("windows 10"))
	assert.Equal(t, "Freebsd", normalizeOS("FreeBSD"))
	assert.Equal(t, "", normalizeOS(""))
}
