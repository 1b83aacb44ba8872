package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/consentwatch/internal/geoip"
	"github.com/ppiankov/consentwatch/internal/model"
)

// NotProvided is returned by HeaderValue for absent headers.
const NotProvided = "Not Provided"

// Locator resolves an address to an ISO country code.
type Locator interface {
	Country(addr string) (string, error)
}

// Extractor turns captures into exchange records.
type Extractor struct {
	// StaticAssetExtensions excludes matching URLs from analysis.
	StaticAssetExtensions []string

	// Locator is optional. When set, X-Forwarded-For is resolved to a country.
	Locator Locator
}

// New returns an extractor that skips the given extensions.
func New(staticExts []string, loc Locator) *Extractor {
	return &Extractor{StaticAssetExtensions: staticExts, Locator: loc}
}

// Extract normalizes c. It returns ok=false when the exchange must be
// skipped: empty URL or a static asset.
func (e *Extractor) Extract(c Capture) (model.ExchangeRecord, bool) {
	if c.URL == "" || e.IsStaticAsset(c.URL) {
		return model.ExchangeRecord{}, false
	}

	rec := model.ExchangeRecord{
		URL:             c.URL,
		Method:          c.Method,
		RequestHeaders:  copyMap(c.RequestHeaders),
		ResponseHeaders: copyMap(c.ResponseHeaders),
		Timestamp:       c.Time(),
		HasBody:         c.RequestBody != nil,
		Site:            Site(c.URL),
		Cookies:         copyMap(c.Cookies),
		LocalStorage:    copyMap(c.LocalStorage),
	}
	if len(rec.Cookies) == 0 {
		rec.Cookies = nil
	}
	if len(rec.LocalStorage) == 0 {
		rec.LocalStorage = nil
	}

	if e.Locator != nil && HasHeader(rec.RequestHeaders, "X-Forwarded-For") {
		addr := geoip.FirstForwarded(rec.RequestHeaders["X-Forwarded-For"])
		if country, err := e.Locator.Country(addr); err == nil {
			rec.OriginCountry = country
		}
	}
	return rec, true
}

// IsStaticAsset reports whether raw names a static asset, either by its
// parsed path or by the raw string suffix.
func (e *Extractor) IsStaticAsset(raw string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	for _, ext := range e.StaticAssetExtensions {
		if strings.HasSuffix(path, ext) || strings.HasSuffix(raw, ext) {
			return true
		}
	}
	return false
}

// Site returns the registrable domain (eTLD+1) of the URL host, or the bare
// host when it has none (IP addresses, localhost).
func Site(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if geoip.ParseAddr(host) != nil {
		return host
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

// HeaderValue returns headers[key] by exact key, or NotProvided.
func HeaderValue(headers map[string]string, key string) string {
	if v := headers[key]; v != "" {
		return v
	}
	return NotProvided
}

// HasHeader reports whether key carries a non-empty value.
func HasHeader(headers map[string]string, key string) bool {
	return headers[key] != ""
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
