// Package i18n translates admin UI strings from YAML catalogs
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when nothing better matches
const DefaultLanguage = "en_US"

//go:embed locales/*.yml
var locales embed.FS

// Translator looks up keys in per-language catalogs, falling back to
// DefaultLanguage and then to the key itself
type Translator struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string
	fallback string
	matcher  language.Matcher
	names    []string
}

// New loads the built-in catalogs
func New() (*Translator, error) {
	t := &Translator{
		catalogs: make(map[string]map[string]string),
		fallback: DefaultLanguage,
	}
	if err := t.LoadFS(locales, "locales"); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadDir merges every <language>.yml in dir over the loaded catalogs
func (t *Translator) LoadDir(dir string) error {
	return t.LoadFS(os.DirFS(dir), ".")
}

// LoadFS merges every <language>.yml under root of files
func (t *Translator) LoadFS(files fs.FS, root string) error {
	entries, err := fs.ReadDir(files, root)
	if err != nil {
		return fmt.Errorf("read locales: %w", err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		data, err := fs.ReadFile(files, pathJoin(root, entry.Name()))
		if err != nil {
			return fmt.Errorf("read locale %s: %w", entry.Name(), err)
		}
		catalog := make(map[string]string)
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return fmt.Errorf("parse locale %s: %w", entry.Name(), err)
		}
		t.Add(strings.TrimSuffix(entry.Name(), ext), catalog)
	}
	return nil
}

func pathJoin(root, name string) string {
	if root == "." || root == "" {
		return name
	}
	return root + "/" + name
}

// Add merges messages into the catalog of lang
func (t *Translator) Add(lang string, messages map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	catalog, ok := t.catalogs[lang]
	if !ok {
		catalog = make(map[string]string, len(messages))
		t.catalogs[lang] = catalog
	}
	for k, v := range messages {
		catalog[k] = v
	}
	t.rebuildMatcher()
}

// Restrict drops every catalog but langs; the fallback catalog is always kept
func (t *Translator) Restrict(langs ...string) {
	if len(langs) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	keep := map[string]bool{t.fallback: true}
	for _, l := range langs {
		keep[l] = true
	}
	for name := range t.catalogs {
		if !keep[name] {
			delete(t.catalogs, name)
		}
	}
	t.rebuildMatcher()
}

// rebuildMatcher must be called with t.mu held
func (t *Translator) rebuildMatcher() {
	names := make([]string, 0, len(t.catalogs))
	for name := range t.catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	// the fallback comes first so the matcher prefers it on ties
	for i, name := range names {
		if name == t.fallback {
			names[0], names[i] = names[i], names[0]
		}
	}

	tags := make([]language.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, language.Make(strings.ReplaceAll(name, "_", "-")))
	}
	t.names = names
	t.matcher = language.NewMatcher(tags)
}

// Languages returns the catalog names, sorted
func (t *Translator) Languages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := append([]string(nil), t.names...)
	sort.Strings(out)
	return out
}

// Match returns the catalog serving lang: "fr", "fr-FR" and "fr_FR" all
// resolve to fr_FR. Unsupported languages resolve to DefaultLanguage.
func (t *Translator) Match(lang string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.catalogs[lang]; ok {
		return lang
	}
	if lang == "" || t.matcher == nil {
		return t.fallback
	}
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return t.fallback
	}
	_, idx, confidence := t.matcher.Match(tag)
	if confidence == language.No {
		return t.fallback
	}
	return t.names[idx]
}

// T translates key into lang. Args are applied with fmt.Sprintf.
func (t *Translator) T(lang, key string, args ...interface{}) string {
	lang = t.Match(lang)

	t.mu.RLock()
	msg, ok := t.catalogs[lang][key]
	if !ok {
		msg, ok = t.catalogs[t.fallback][key]
	}
	t.mu.RUnlock()

	if !ok {
		msg = key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// Func binds T to lang for use in templates
func (t *Translator) Func(lang string) func(key string, args ...interface{}) string {
	lang = t.Match(lang)
	return func(key string, args ...interface{}) string {
		return t.T(lang, key, args...)
	}
}
