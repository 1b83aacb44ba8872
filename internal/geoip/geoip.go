// Package geoip resolves client addresses to ISO country codes using a
// MaxMind City database.
package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Locator looks up the origin country of an IP address.
type Locator struct {
	reader *geoip2.Reader
}

// Open loads a City database from disk.
func Open(cityDBPath string) (*Locator, error) {
	reader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("open city database: %w", err)
	}
	return &Locator{reader: reader}, nil
}

// Close releases the database.
func (l *Locator) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}

// Country returns the ISO code for addr. Unknown addresses yield "".
func (l *Locator) Country(addr string) (string, error) {
	ip := ParseAddr(addr)
	if ip == nil {
		return "", fmt.Errorf("invalid ip address: %q", addr)
	}
	record, err := l.reader.City(ip)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", ip, err)
	}
	return record.Country.IsoCode, nil
}

// ParseAddr accepts a bare IP, a host:port pair, or a bracketed IPv6 address.
func ParseAddr(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if ip := net.ParseIP(addr); ip != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(strings.Trim(addr, "[]"))
}

// FirstForwarded returns the client address from an X-Forwarded-For value.
func FirstForwarded(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
