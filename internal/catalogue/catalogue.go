// Package catalogue holds the static detection tables the check battery
// consumes: regexes, substring lists and header names per risk category.
package catalogue

import (
	"regexp"

	"github.com/ppiankov/consentwatch/internal/model"
)

// NamedPattern is a compiled regex tagged with the data type it detects.
type NamedPattern struct {
	Name  string
	Regex *regexp.Regexp
}

// CookieFamily groups cookie-name fragments by purpose.
type CookieFamily struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// PrivacyControl is a user-facing link surfaced with web-storage findings.
type PrivacyControl struct {
	Tool        string `yaml:"tool"        json:"tool"`
	URL         string `yaml:"url"         json:"url"`
	Description string `yaml:"description" json:"description"`
}

// Catalogue is the full set of detection tables. It is never mutated after
// construction; reloads build a new value.
type Catalogue struct {
	StaticAssetExtensions []string

	// Privacy domain.
	DataCollection     []NamedPattern
	LocationHeaders    []string
	LocationURLMarkers []string
	ThirdPartyMarkers  []string
	SensitiveData      []NamedPattern
	SecureScheme       string
	SecurityHeaders    []string
	RetentionHeader    string
	RetentionMarker    string
	RetentionMaxAge    int64

	// ToS domain.
	UserAgentHeader       string
	AutomatedAgentMarkers []string
	APIAbusePaths         []string
	ExtractionURLMarkers  []string
	AcceptHeader          string
	ExtractionAcceptType  string
	DebugHeaders          []string
	AITrainingPaths       []string
	ContentLengthHeader   string
	BulkDownloadLimit     int64

	// Web storage.
	CookieFamilies  []CookieFamily
	StorageMarkers  []string
	PrivacyControls []PrivacyControl

	// References point into the policy or ToS text for each category.
	References map[model.Category]string
}

// Reference returns the policy reference for a category, or "" if unknown.
func (c *Catalogue) Reference(cat model.Category) string {
	return c.References[cat]
}

// HeaderNames lists every header key the checks look up, spelled as the
// checks spell them.
func (c *Catalogue) HeaderNames() []string {
	var names []string
	names = append(names, c.LocationHeaders...)
	names = append(names, c.SecurityHeaders...)
	names = append(names, c.DebugHeaders...)
	for _, n := range []string{c.RetentionHeader, c.UserAgentHeader, c.AcceptHeader, c.ContentLengthHeader} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	return &Catalogue{
		StaticAssetExtensions: []string{".jpg", ".png", ".css", ".js", ".woff", ".ico"},

		DataCollection: []NamedPattern{
			{Name: "location", Regex: regexp.MustCompile(`(?i)location|lat|long|coords`)},
			{Name: "deviceInfo", Regex: regexp.MustCompile(`(?i)device|browser|hardware|platform`)},
			{Name: "userActivity", Regex: regexp.MustCompile(`(?i)activity|behavior|interaction`)},
			{Name: "personalInfo", Regex: regexp.MustCompile(`(?i)name|email|phone|address`)},
			{Name: "searchHistory", Regex: regexp.MustCompile(`(?i)search|query|keywords`)},
			{Name: "audioData", Regex: regexp.MustCompile(`(?i)audio|voice|sound`)},
		},
		LocationHeaders:    []string{"Geolocation", "GPS", "X-Forwarded-For"},
		LocationURLMarkers: []string{"latitude", "longitude"},
		ThirdPartyMarkers:  []string{"analytics", "tracking", "advertising", "marketing", "metrics"},
		SensitiveData: []NamedPattern{
			{Name: "creditCard", Regex: regexp.MustCompile(`(?i)card|credit|payment`)},
			{Name: "healthcare", Regex: regexp.MustCompile(`(?i)health|medical|treatment`)},
			{Name: "biometric", Regex: regexp.MustCompile(`(?i)biometric|fingerprint|facial`)},
			{Name: "government", Regex: regexp.MustCompile(`(?i)ssn|passport|license`)},
		},
		SecureScheme:    "https",
		SecurityHeaders: []string{"Strict-Transport-Security", "X-Content-Type-Options", "X-Frame-Options"},
		RetentionHeader: "Cache-Control",
		RetentionMarker: "max-age=",
		RetentionMaxAge: 2_592_000, // 30 days

		UserAgentHeader:       "User-Agent",
		AutomatedAgentMarkers: []string{"bot", "crawler"},
		APIAbusePaths:         []string{"/training/", "/scrape/", "/bulk/", "/mass/"},
		ExtractionURLMarkers:  []string{"/download/all", "format=json", "output=xml"},
		AcceptHeader:          "Accept",
		ExtractionAcceptType:  "application/json",
		DebugHeaders:          []string{"X-Debug", "X-Debug-Mode", "X-Debug-Token"},
		AITrainingPaths:       []string{"/train/", "/dataset/", "/corpus/", "/collect/", "/batch/"},
		ContentLengthHeader:   "content-length",
		BulkDownloadLimit:     10_000_000,

		CookieFamilies: []CookieFamily{
			{Name: "preferences", Patterns: []string{"PREF", "NID", "CONSENT"}},
			{Name: "security", Patterns: []string{"SID", "HSID", "SSID"}},
			{Name: "analytics", Patterns: []string{"_ga", "_gid", "__utma"}},
			{Name: "advertising", Patterns: []string{"IDE", "ANID", "DV"}},
		},
		StorageMarkers: []string{"preference", "setting", "id", "token", "session"},
		PrivacyControls: []PrivacyControl{
			{Tool: "Privacy Checkup", URL: "https://myaccount.google.com/privacycheckup", Description: "Review and adjust your privacy settings"},
			{Tool: "Activity Controls", URL: "https://myaccount.google.com/activitycontrols", Description: "Manage what information Google saves about your activity"},
			{Tool: "Ad Settings", URL: "https://adssettings.google.com", Description: "Control how Google personalizes ads for you"},
		},

		References: map[model.Category]string{
			model.CatDataCollection:     "Section: Why Google Collects Data",
			model.CatLocationData:       "Section: Your location information",
			model.CatThirdPartySharing:  "Section: When Google shares your information",
			model.CatSensitiveData:      "Section: When Google shares your information - With your consent",
			model.CatSecurity:           "Section: Keeping your information secure",
			model.CatDataRetention:      "Section: Retaining your information",
			model.CatAutomatedAccess:    "Section: Don't abuse our services - using automated means to access content",
			model.CatAPIAbuse:           "Section: Don't abuse our services - accessing or using our services in fraudulent or deceptive ways",
			model.CatContentExtraction:  "Section: Permission to use your content",
			model.CatReverseEngineering: "Section: Don't abuse our services - reverse engineering our services",
			model.CatAITraining:         "Section: Don't abuse our services - using AI-generated content to develop machine learning models",
			model.CatBulkDownload:       "Section: Don't abuse our services",
			model.CatCookieUsage:        "Privacy Policy: We use various technologies to collect and store information, including cookies",
			model.CatLocalStorage:       "Privacy Policy: Browser web storage or application data caches",
		},
	}
}
