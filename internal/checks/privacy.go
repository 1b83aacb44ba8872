package checks

import (
	"fmt"
	"strings"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
)

// PrivacyChecks is the privacy-policy battery in presentation order.
var PrivacyChecks = []Check{
	{Name: "data_collection", Run: checkDataCollection},
	{Name: "location_data", Run: checkLocationData},
	{Name: "third_party_sharing", Run: checkThirdPartySharing},
	{Name: "sensitive_data", Run: checkSensitiveData},
	{Name: "secure_transport", Run: checkSecureTransport},
	{Name: "security_headers", Run: checkSecurityHeaders},
	{Name: "data_retention", Run: checkDataRetention},
}

func checkDataCollection(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	headers := headerJSON(rec.RequestHeaders)
	var out []model.Finding
	for _, p := range cat.DataCollection {
		if p.Regex.MatchString(rec.URL) || p.Regex.MatchString(headers) {
			out = append(out, warning(rec, cat, model.CatDataCollection,
				fmt.Sprintf("Collecting %s data - ensure user consent is obtained", p.Name)))
		}
	}
	return out
}

func checkLocationData(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	present := containsAny(rec.URL, cat.LocationURLMarkers)
	for _, h := range cat.LocationHeaders {
		if extract.HasHeader(rec.RequestHeaders, h) {
			present = true
			break
		}
	}
	if !present {
		return nil
	}
	detail := "Location data being collected - verify user location settings consent"
	if rec.OriginCountry != "" {
		detail += fmt.Sprintf(" (origin %s)", rec.OriginCountry)
	}
	return []model.Finding{violation(rec, cat, model.CatLocationData, model.SevHigh, detail)}
}

func checkThirdPartySharing(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if !containsAny(rec.URL, cat.ThirdPartyMarkers) {
		return nil
	}
	return []model.Finding{violation(rec, cat, model.CatThirdPartySharing, model.SevMedium,
		"Data being shared with third-party services")}
}

func checkSensitiveData(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	headers := headerJSON(rec.RequestHeaders)
	var out []model.Finding
	for _, p := range cat.SensitiveData {
		if p.Regex.MatchString(rec.URL) || p.Regex.MatchString(headers) {
			out = append(out, violation(rec, cat, model.CatSensitiveData, model.SevHigh,
				fmt.Sprintf("Potential %s data transmission detected", p.Name)))
		}
	}
	return out
}

func checkSecureTransport(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if strings.HasPrefix(rec.URL, cat.SecureScheme) {
		return nil
	}
	return []model.Finding{violation(rec, cat, model.CatSecurity, model.SevHigh,
		"Insecure data transmission - HTTPS required")}
}

func checkSecurityHeaders(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	var out []model.Finding
	for _, h := range cat.SecurityHeaders {
		if !extract.HasHeader(rec.ResponseHeaders, h) {
			out = append(out, warning(rec, cat, model.CatSecurity, "Missing security header: "+h))
		}
	}
	return out
}

func checkDataRetention(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if !extract.HasHeader(rec.ResponseHeaders, cat.RetentionHeader) {
		return nil
	}
	_, after, found := strings.Cut(rec.ResponseHeaders[cat.RetentionHeader], cat.RetentionMarker)
	if !found {
		return nil
	}
	if maxAge, ok := leadingInt(after); !ok || maxAge <= cat.RetentionMaxAge {
		return nil
	}
	return []model.Finding{warning(rec, cat, model.CatDataRetention, "Long-term data caching detected")}
}
