// Package i18n provides localized message lookup for user-visible and
// persistence-context strings. Catalogs are embedded JSON files with dotted
// message keys; lookups fall back to English when the configured locale has
// no entry.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves message keys against the embedded catalogs for one
// configured locale.
type Translator struct {
	localizer *goi18n.Localizer
	locale    string
}

// New loads the embedded catalogs and builds a Translator for locale.
// Unknown locales are accepted and resolve through the English fallback.
func New(locale string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
			return nil, fmt.Errorf("failed to load locale file %s: %w", entry.Name(), err)
		}
	}

	return &Translator{
		localizer: goi18n.NewLocalizer(bundle, locale, language.English.String()),
		locale:    locale,
	}, nil
}

// Locale returns the locale the Translator was configured with.
func (t *Translator) Locale() string {
	return t.locale
}

// T resolves key with the given template data. A key missing from every
// catalog resolves to the key itself so callers always get usable text.
func (t *Translator) T(key string, data map[string]any) string {
	msg, err := t.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		return key
	}
	return msg
}
