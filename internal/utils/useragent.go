package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
	ua "github.com/mssola/user_agent"

	"github.com/happypaws/dogwalk-backend/internal/models"
)

// DeviceInfo holds parsed information from a User-Agent string
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, bot
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
}

var tabletIndicators = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "xoom", "sm-t"}

// ParseUserAgent parses a User-Agent string and extracts device information
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)

	info := DeviceInfo{
		IsBot:   parser.Bot(),
		OS:      "Unknown",
		Browser: "Unknown",
	}

	if osInfo := parser.OSInfo(); osInfo.Name != "" {
		info.OS = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	}
	if name, _ := parser.Browser(); name != "" {
		info.Browser = name
	}

	switch {
	case info.IsBot:
		info.DeviceType = "bot"
	case parser.Mobile() && isTablet(userAgent):
		info.DeviceType = "tablet"
	case parser.Mobile():
		info.DeviceType = "mobile"
	default:
		info.DeviceType = "desktop"
	}

	return info
}

// Summary renders the device as "<type> / <os> / <browser>"
func (d DeviceInfo) Summary() string {
	return d.DeviceType + " / " + d.OS + " / " + d.Browser
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, indicator := range tabletIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// RequestMetaFrom collects the caller details stored with payment audits
func RequestMetaFrom(c *gin.Context) models.RequestMeta {
	userAgent := GetUserAgent(c)
	return models.RequestMeta{
		IPAddress: GetRealIP(c),
		UserAgent: userAgent,
		Device:    ParseUserAgent(userAgent).Summary(),
	}
}
