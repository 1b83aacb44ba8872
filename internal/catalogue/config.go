package catalogue

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/consentwatch/internal/model"
)

// PatternDef is a named regex as written in an overlay file.
type PatternDef struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// Overlay is the YAML form of a catalogue override. Only the keys present in
// the file replace the built-in tables.
type Overlay struct {
	StaticAssetExtensions []string                  `yaml:"static_asset_extensions"`
	DataCollection        []PatternDef              `yaml:"data_collection"`
	LocationHeaders       []string                  `yaml:"location_headers"`
	LocationURLMarkers    []string                  `yaml:"location_url_markers"`
	ThirdPartyMarkers     []string                  `yaml:"third_party_markers"`
	SensitiveData         []PatternDef              `yaml:"sensitive_data"`
	SecurityHeaders       []string                  `yaml:"security_headers"`
	RetentionMaxAge       *int64                    `yaml:"retention_max_age"`
	AutomatedAgentMarkers []string                  `yaml:"automated_agent_markers"`
	APIAbusePaths         []string                  `yaml:"api_abuse_paths"`
	ExtractionURLMarkers  []string                  `yaml:"extraction_url_markers"`
	DebugHeaders          []string                  `yaml:"debug_headers"`
	AITrainingPaths       []string                  `yaml:"ai_training_paths"`
	BulkDownloadLimit     *int64                    `yaml:"bulk_download_limit"`
	CookieFamilies        []CookieFamily            `yaml:"cookie_families"`
	StorageMarkers        []string                  `yaml:"storage_markers"`
	PrivacyControls       []PrivacyControl          `yaml:"privacy_controls"`
	References            map[model.Category]string `yaml:"references"`
}

// Load reads an overlay file and applies it to the defaults.
// An empty path or a missing file returns the defaults.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return Parse(data)
}

// Parse applies YAML overlay bytes to the defaults.
func Parse(data []byte) (*Catalogue, error) {
	var ov Overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return Apply(Default(), &ov)
}

// Apply returns a copy of base with the overlay's non-empty tables swapped in.
func Apply(base *Catalogue, ov *Overlay) (*Catalogue, error) {
	c := *base
	c.References = make(map[model.Category]string, len(base.References))
	for k, v := range base.References {
		c.References[k] = v
	}
	if ov == nil {
		return &c, nil
	}

	if ov.DataCollection != nil {
		patterns, err := compile("data_collection", ov.DataCollection)
		if err != nil {
			return nil, err
		}
		c.DataCollection = patterns
	}
	if ov.SensitiveData != nil {
		patterns, err := compile("sensitive_data", ov.SensitiveData)
		if err != nil {
			return nil, err
		}
		c.SensitiveData = patterns
	}

	replace(&c.StaticAssetExtensions, ov.StaticAssetExtensions)
	replace(&c.LocationHeaders, ov.LocationHeaders)
	replace(&c.LocationURLMarkers, ov.LocationURLMarkers)
	replace(&c.ThirdPartyMarkers, ov.ThirdPartyMarkers)
	replace(&c.SecurityHeaders, ov.SecurityHeaders)
	replace(&c.AutomatedAgentMarkers, ov.AutomatedAgentMarkers)
	replace(&c.APIAbusePaths, ov.APIAbusePaths)
	replace(&c.ExtractionURLMarkers, ov.ExtractionURLMarkers)
	replace(&c.DebugHeaders, ov.DebugHeaders)
	replace(&c.AITrainingPaths, ov.AITrainingPaths)
	replace(&c.StorageMarkers, ov.StorageMarkers)

	if ov.CookieFamilies != nil {
		c.CookieFamilies = ov.CookieFamilies
	}
	if ov.PrivacyControls != nil {
		c.PrivacyControls = ov.PrivacyControls
	}
	if ov.RetentionMaxAge != nil {
		if *ov.RetentionMaxAge < 0 {
			return nil, fmt.Errorf("retention_max_age must not be negative")
		}
		c.RetentionMaxAge = *ov.RetentionMaxAge
	}
	if ov.BulkDownloadLimit != nil {
		if *ov.BulkDownloadLimit < 0 {
			return nil, fmt.Errorf("bulk_download_limit must not be negative")
		}
		c.BulkDownloadLimit = *ov.BulkDownloadLimit
	}
	for k, v := range ov.References {
		c.References[k] = v
	}

	return &c, nil
}

func compile(field string, defs []PatternDef) ([]NamedPattern, error) {
	patterns := make([]NamedPattern, 0, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%s[%d]: name is required", field, i)
		}
		if def.Regex == "" {
			return nil, fmt.Errorf("%s[%d]: regex is required", field, i)
		}
		re, err := regexp.Compile(def.Regex)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] %q: invalid regex: %w", field, i, def.Name, err)
		}
		patterns = append(patterns, NamedPattern{Name: def.Name, Regex: re})
	}
	return patterns, nil
}

func replace(dst *[]string, src []string) {
	if src != nil {
		*dst = append([]string(nil), src...)
	}
}
