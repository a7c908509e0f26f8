// Package i18n renders owner-facing messages in the supported languages.
//
// Messages live in one embedded YAML file per language under locales/.
// Keys are dotted paths into the nested YAML ("eod.closed",
// "import.doc_types.csv_export"). A key missing from a language falls back
// to English; a key missing from English renders as the key itself.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used for fallback and when no language is given
const DefaultLanguage = "en"

// Languages lists the supported language codes
var Languages = []string{"en", "hi", "te", "ta", "kn", "bn", "gu", "mr", "ml", "or", "pa"}

//go:embed locales/*.yaml
var localeFS embed.FS

var rePlaceholder = regexp.MustCompile(`\{(\w+)\}`)

// Vars holds placeholder values for Render
type Vars map[string]string

// Catalog holds the flattened messages of every loaded language
type Catalog struct {
	messages map[string]map[string]string
}

// New loads the embedded locale files
func New() (*Catalog, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}

	c := &Catalog{messages: make(map[string]map[string]string, len(entries))}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", name, err)
		}
		if err := c.add(strings.TrimSuffix(name, ".yaml"), data); err != nil {
			return nil, err
		}
	}

	if _, ok := c.messages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("missing %s locale", DefaultLanguage)
	}
	return c, nil
}

// MustNew is New that panics on error. The locales are embedded, so an
// error here is a build defect.
func MustNew() *Catalog {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) add(lang string, data []byte) error {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse locale %s: %w", lang, err)
	}
	flat := make(map[string]string)
	flatten("", tree, flat)
	c.messages[lang] = flat
	return nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Lookup returns the raw template for key in lang, reporting whether it was
// found in lang itself or only in English
func (c *Catalog) Lookup(lang, key string) (string, bool) {
	if msg, ok := c.messages[Normalize(lang)][key]; ok {
		return msg, true
	}
	msg, ok := c.messages[DefaultLanguage][key]
	return msg, ok
}

// Text returns the template for key without substitution
func (c *Catalog) Text(lang, key string) string {
	if msg, ok := c.Lookup(lang, key); ok {
		return msg
	}
	return key
}

// Render fills {name} placeholders in the template for key. Placeholders
// without a value are left as they are.
func (c *Catalog) Render(lang, key string, vars Vars) string {
	return Fill(c.Text(lang, key), vars)
}

// Has reports whether lang defines key without falling back
func (c *Catalog) Has(lang, key string) bool {
	_, ok := c.messages[Normalize(lang)][key]
	return ok
}

// Loaded lists the languages present in the catalog, sorted
func (c *Catalog) Loaded() []string {
	langs := make([]string, 0, len(c.messages))
	for l := range c.messages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Fill replaces {name} placeholders in template with vars
func Fill(template string, vars Vars) string {
	if len(vars) == 0 {
		return template
	}
	return rePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Normalize lowercases a language code and maps empty to English
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// Supported reports whether lang is one of Languages
func Supported(lang string) bool {
	lang = Normalize(lang)
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}
