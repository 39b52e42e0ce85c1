// Package profiles holds the versioned configuration data that describes the
// supported bill export formats and the keyword lists used by analytics.
//
// The defaults are embedded from default.yaml. When a platform changes its
// export layout, an override file with the same shape can be supplied with
// Load instead of changing parser code.
package profiles

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bill-analytics-service/internal/models"
	apperrors "bill-analytics-service/pkg/errors"
)

// CurrentVersion is the profile schema version understood by this build
const CurrentVersion = 1

//go:embed default.yaml
var defaultYAML []byte

// Profile is the root of the configuration document
type Profile struct {
	Version        int                `yaml:"version"`
	Platforms      Platforms          `yaml:"platforms"`
	Defaults       Defaults           `yaml:"defaults"`
	PaymentMethods PaymentMethodRules `yaml:"payment_methods"`
	Keywords       Keywords           `yaml:"keywords"`
}

// Platforms groups the per-platform export descriptions
type Platforms struct {
	Alipay Platform `yaml:"alipay"`
	WeChat Platform `yaml:"wechat"`
}

// Platform describes one export format
type Platform struct {
	Name           string              `yaml:"name"`
	Encodings      []string            `yaml:"encodings"`
	HeaderMarkers  []string            `yaml:"header_markers"`
	StatusMarker   string              `yaml:"status_marker,omitempty"`
	Banner         string              `yaml:"banner,omitempty"`
	RefundStatuses []string            `yaml:"refund_statuses,omitempty"`
	RefundKeywords []string            `yaml:"refund_keywords,omitempty"`
	CurrencyGlyphs []string            `yaml:"currency_glyphs"`
	Spreadsheet    *Spreadsheet        `yaml:"spreadsheet,omitempty"`
	Columns        map[string][]string `yaml:"columns"`
}

// Spreadsheet describes the xlsx variant of an export
type Spreadsheet struct {
	HeaderRow       int      `yaml:"header_row"`
	Banner          string   `yaml:"banner"`
	RequiredColumns []string `yaml:"required_columns"`
}

// Defaults are back-filled when a source column is absent
type Defaults struct {
	Counterparty string `yaml:"counterparty"`
	Direction    string `yaml:"direction"`
}

// PaymentMethodRules canonicalize raw payment method strings
type PaymentMethodRules struct {
	StripParenthetical bool                 `yaml:"strip_parenthetical"`
	Aliases            []PaymentMethodAlias `yaml:"aliases"`
}

// PaymentMethodAlias merges every method containing one of Contains into Name
type PaymentMethodAlias struct {
	Name     string   `yaml:"name"`
	Contains []string `yaml:"contains"`
}

// Keywords are the keyword lists consulted by analytics
type Keywords struct {
	Online             []string `yaml:"online"`
	Food               []string `yaml:"food"`
	Coffee             []string `yaml:"coffee"`
	Takeout            []string `yaml:"takeout"`
	TransferExclusions []string `yaml:"transfer_exclusions"`
}

// Default returns the embedded profile
func Default() *Profile {
	p, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded profile is invalid: %v", err))
	}
	return p
}

// Load reads and validates a profile file
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileRead, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a profile document
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, apperrors.ConfigurationError("profile", "yaml", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the profile can drive the parsers
func (p *Profile) Validate() error {
	if p.Version != CurrentVersion {
		return apperrors.ConfigurationError("version", p.Version, nil).
			WithSuggestion(fmt.Sprintf("this build understands profile version %d", CurrentVersion))
	}
	for name, platform := range map[string]Platform{"alipay": p.Platforms.Alipay, "wechat": p.Platforms.WeChat} {
		if err := platform.Validate(); err != nil {
			return apperrors.ConfigurationError("platforms."+name, err.Error(), nil)
		}
	}
	if strings.TrimSpace(p.Defaults.Counterparty) == "" {
		p.Defaults.Counterparty = models.UnknownCounterparty
	}
	if strings.TrimSpace(p.Defaults.Direction) == "" {
		p.Defaults.Direction = "/"
	}
	return nil
}

// Validate checks a single platform description
func (pl *Platform) Validate() error {
	if len(pl.Encodings) == 0 {
		return fmt.Errorf("at least one encoding is required")
	}
	if len(pl.HeaderMarkers) == 0 {
		return fmt.Errorf("at least one header marker is required")
	}
	for _, col := range []string{models.ColTimestamp, models.ColAmount} {
		if len(pl.Columns[col]) == 0 {
			return fmt.Errorf("column mapping for %q is required", col)
		}
	}
	if pl.Spreadsheet != nil && len(pl.Spreadsheet.RequiredColumns) == 0 {
		return fmt.Errorf("spreadsheet required columns cannot be empty")
	}
	return nil
}

// IsRefund applies the platform's refund rule to a raw status string.
// Exact statuses are checked first, then substring keywords.
func (pl *Platform) IsRefund(status string) bool {
	status = strings.TrimSpace(status)
	if status == "" {
		return false
	}
	for _, s := range pl.RefundStatuses {
		if status == s {
			return true
		}
	}
	for _, kw := range pl.RefundKeywords {
		if strings.Contains(status, kw) {
			return true
		}
	}
	return false
}

// CanonicalizePaymentMethod strips parenthetical suffixes and merges aliases
func (r PaymentMethodRules) CanonicalizePaymentMethod(raw string) string {
	method := strings.TrimSpace(raw)
	if r.StripParenthetical {
		if i := strings.IndexAny(method, "(（"); i >= 0 {
			method = strings.TrimSpace(method[:i])
		}
	}
	for _, alias := range r.Aliases {
		for _, kw := range alias.Contains {
			if strings.Contains(method, kw) {
				return alias.Name
			}
		}
	}
	return method
}

// ContainsAny reports whether s contains any keyword, ignoring ASCII case
func ContainsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
