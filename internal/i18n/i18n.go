// Package i18n resolves user-facing strings from YAML catalogs.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

const embeddedDir = "locales"

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// Tf formats the translation with fmt verbs.
	Tf(key string, args ...any) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	translations map[string]map[string]string
	defaultLang  string
}

// Load loads the catalogs compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(embedded, embeddedDir, defaultLang)
}

// LoadFS loads translations from YAML files in dir of fsys.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	catalog, err := parseDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	if defaultLang == "" {
		defaultLang = "ru"
	}

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: catalog, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language, falling back to the default.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(norm, "-_"); i > 0 {
		norm = norm[:i]
	}
	if norm == "" || m.translations[norm] == nil {
		norm = m.defaultLang
	}

	return translator{
		lang:         norm,
		fallback:     m.defaultLang,
		translations: m.translations,
	}
}

// Default returns the translator for the default language.
func (m *Manager) Default() Translator {
	if m == nil {
		return translator{}
	}
	return m.Translator(m.defaultLang)
}

// Languages returns the loaded language codes in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.translations))
}

// MissingKeys lists keys the default language defines but lang does not, sorted.
func (m *Manager) MissingKeys(lang string) []string {
	if m == nil {
		return nil
	}

	var missing []string
	for key := range m.translations[m.defaultLang] {
		if _, ok := m.translations[lang][key]; !ok {
			missing = append(missing, key)
		}
	}
	slices.Sort(missing)
	return missing
}

type translator struct {
	lang         string
	fallback     string
	translations map[string]map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if value, ok := t.lookup(t.lang, key); ok {
		return value
	}

	if value, ok := t.lookup(t.fallback, key); ok {
		return value
	}

	return key
}

func (t translator) Tf(key string, args ...any) string {
	format := t.T(key)
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (t translator) lookup(lang, key string) (string, bool) {
	if lang == "" || t.translations == nil {
		return "", false
	}

	value, ok := t.translations[lang][key]
	return value, ok
}

func parseDir(fsys fs.FS, dir string) (map[string]map[string]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, path.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("i18n: glob %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}
	slices.Sort(files)

	catalog := make(map[string]map[string]string)
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", file, err)
		}

		parsed, err := parseFile(path.Base(file), data)
		if err != nil {
			return nil, err
		}

		for lang, entries := range parsed {
			if catalog[lang] == nil {
				catalog[lang] = make(map[string]string, len(entries))
			}
			maps.Copy(catalog[lang], entries)
		}
	}

	return catalog, nil
}

// parseFile reads a document of the form {lang: {nested: {key: value}}}.
func parseFile(name string, data []byte) (map[string]map[string]string, error) {
	if strings.TrimSpace(string(data)) == "" {
		return map[string]map[string]string{}, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
	}

	catalog := make(map[string]map[string]string)
	for lang, value := range raw {
		langKey := strings.ToLower(strings.TrimSpace(lang))
		nested, ok := value.(map[string]any)
		if langKey == "" || !ok {
			continue
		}

		flattened := make(map[string]string)
		flatten("", nested, flattened)
		if len(flattened) > 0 {
			catalog[langKey] = flattened
		}
	}

	return catalog, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		if key == "" {
			continue
		}

		nextKey := key
		if prefix != "" {
			nextKey = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			out[nextKey] = v
		case map[string]any:
			flatten(nextKey, v, out)
		}
	}
}
