package checks

import (
	"strings"

	"github.com/ppiankov/consentwatch/internal/catalogue"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
)

// ToSChecks is the terms-of-service battery in presentation order.
var ToSChecks = []Check{
	{Name: "automated_access", Run: checkAutomatedAccess},
	{Name: "api_abuse", Run: checkAPIAbuse},
	{Name: "content_extraction", Run: checkContentExtraction},
	{Name: "reverse_engineering", Run: checkReverseEngineering},
	{Name: "ai_training", Run: checkAITraining},
	{Name: "bulk_download", Run: checkBulkDownload},
}

func checkAutomatedAccess(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if !extract.HasHeader(rec.RequestHeaders, cat.UserAgentHeader) {
		return nil
	}
	ua := strings.ToLower(rec.RequestHeaders[cat.UserAgentHeader])
	if !containsAny(ua, cat.AutomatedAgentMarkers) {
		return nil
	}
	return []model.Finding{violation(rec, cat, model.CatAutomatedAccess, model.SevHigh,
		"Potential automated access detected through User-Agent")}
}

func checkAPIAbuse(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if !containsAny(rec.URL, cat.APIAbusePaths) {
		return nil
	}
	return []model.Finding{violation(rec, cat, model.CatAPIAbuse, model.SevMedium,
		"Accessing endpoints typically associated with bulk data collection")}
}

func checkContentExtraction(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	hit := containsAny(rec.URL, cat.ExtractionURLMarkers)
	if !hit && extract.HasHeader(rec.RequestHeaders, cat.AcceptHeader) {
		hit = strings.Contains(rec.RequestHeaders[cat.AcceptHeader], cat.ExtractionAcceptType)
	}
	if !hit {
		return nil
	}
	return []model.Finding{warning(rec, cat, model.CatContentExtraction,
		"Potential systematic content extraction detected")}
}

func checkReverseEngineering(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	for _, h := range cat.DebugHeaders {
		if extract.HasHeader(rec.RequestHeaders, h) {
			return []model.Finding{violation(rec, cat, model.CatReverseEngineering, model.SevHigh,
				"Debug headers detected that might indicate reverse engineering attempts")}
		}
	}
	return nil
}

func checkAITraining(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if !containsAny(rec.URL, cat.AITrainingPaths) {
		return nil
	}
	return []model.Finding{violation(rec, cat, model.CatAITraining, model.SevHigh,
		"Pattern suggesting AI model training activity detected")}
}

func checkBulkDownload(rec model.ExchangeRecord, cat *catalogue.Catalogue) []model.Finding {
	if !extract.HasHeader(rec.ResponseHeaders, cat.ContentLengthHeader) {
		return nil
	}
	size, ok := leadingInt(rec.ResponseHeaders[cat.ContentLengthHeader])
	if !ok || size <= cat.BulkDownloadLimit {
		return nil
	}
	return []model.Finding{warning(rec, cat, model.CatBulkDownload,
		"Large response size might indicate bulk data collection")}
}
