package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

// GetRealIP extracts the client IP address from the request.
//
// Priority order:
// 1. X-Real-IP header, when it holds a public address
// 2. First public address in X-Forwarded-For, else its first valid entry
// 3. Gin's ClientIP()
func GetRealIP(c *gin.Context) string {
	realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP"))
	if ip := net.ParseIP(realIP); ip != nil && !isPrivateIP(ip) {
		return realIP
	}

	if forwarded := c.Request.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		for _, ipStr := range ips {
			clientIP := strings.TrimSpace(ipStr)
			ip := net.ParseIP(clientIP)
			if ip != nil && !isPrivateIP(ip) && !IsLocalhost(clientIP) {
				return clientIP
			}
		}
		if first := strings.TrimSpace(ips[0]); net.ParseIP(first) != nil {
			return first
		}
	}

	return c.ClientIP()
}

// GetUserAgent extracts the User-Agent header from the request
func GetUserAgent(c *gin.Context) string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return "Unknown"
	}
	return ua
}

// IsLocalhost checks if an IP address is localhost
func IsLocalhost(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}

func isPrivateIP(ip net.IP) bool {
	for _, subnet := range privateRanges {
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, subnet)
	}
	return nets
}
