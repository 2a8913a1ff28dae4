package llm

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// Locale identifies a prompt translation; DefaultLocale is the English
// fallback used when no localized variant exists.
type Locale string

// PromptKey identifies one of the embedded prompt templates.
type PromptKey string

const (
	DefaultLocale Locale = "default"

	FileSystemPrompt  PromptKey = "file_system"
	FileUserPrompt    PromptKey = "file_user"
	DiscussionComment PromptKey = "discussion"
	LimitNotice       PromptKey = "limit_notice"
)

// PromptManager loads and renders the embedded prompt and comment templates.
// Files are named "key_locale.prompt"; lookups fall back to the default
// locale when a translation is missing.
type PromptManager struct {
	prompts map[PromptKey]map[Locale]*template.Template
}

func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[PromptKey]map[Locale]*template.Template),
	}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		fileName := file.Name()
		baseName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		lastUnderscore := strings.LastIndex(baseName, "_")
		if lastUnderscore <= 0 || lastUnderscore == len(baseName)-1 {
			return nil, fmt.Errorf("invalid prompt filename format: %s (expected 'key_locale.prompt')", fileName)
		}

		key := PromptKey(baseName[:lastUnderscore])
		locale := Locale(baseName[lastUnderscore+1:])

		content, err := promptFiles.ReadFile("prompts/" + fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", fileName, err)
		}

		if err := pm.register(key, locale, string(content)); err != nil {
			return nil, fmt.Errorf("failed to register prompt from file %s: %w", fileName, err)
		}
	}

	return pm, nil
}

func (pm *PromptManager) register(key PromptKey, locale Locale, content string) error {
	tmpl, err := template.New(string(key) + "_" + string(locale)).Parse(content)
	if err != nil {
		return fmt.Errorf("could not parse template: %w", err)
	}

	if _, ok := pm.prompts[key]; !ok {
		pm.prompts[key] = make(map[Locale]*template.Template)
	}
	pm.prompts[key][locale] = tmpl
	return nil
}

func (pm *PromptManager) get(key PromptKey, locale Locale) (*template.Template, error) {
	localized, ok := pm.prompts[key]
	if !ok {
		return nil, fmt.Errorf("no prompts found for key %q", key)
	}

	if tmpl, ok := localized[locale]; ok {
		return tmpl, nil
	}
	if tmpl, ok := localized[DefaultLocale]; ok {
		return tmpl, nil
	}

	return nil, fmt.Errorf("no template found for key %q and locale %q, and no default was available", key, locale)
}

// Render executes the template for key in the given locale.
func (pm *PromptManager) Render(key PromptKey, locale Locale, data any) (string, error) {
	tmpl, err := pm.get(key, locale)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
