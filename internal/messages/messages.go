package messages

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed catalog/*.json
var catalogFS embed.FS

// Lookup is the text collaborator consumed by the extractor and the CLI.
type Lookup interface {
	Get(key string, args map[string]any) string
}

// Catalog holds every embedded language table.
type Catalog struct {
	tags    []language.Tag
	tables  []map[string]string
	matcher language.Matcher
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded tables are
// malformed, which only a broken build can cause.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = load()
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

func load() (*Catalog, error) {
	entries, err := catalogFS.ReadDir("catalog")
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	// English first so the matcher falls back to it.
	sort.SliceStable(names, func(i, j int) bool {
		if names[i] == "en.json" {
			return true
		}
		if names[j] == "en.json" {
			return false
		}
		return names[i] < names[j]
	})

	c := &Catalog{}
	for _, name := range names {
		data, err := catalogFS.ReadFile(path.Join("catalog", name))
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}
		table := make(map[string]string)
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		tag, err := language.Parse(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		c.tags = append(c.tags, tag)
		c.tables = append(c.tables, table)
	}
	if len(c.tags) == 0 {
		return nil, fmt.Errorf("no message catalogs embedded")
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Languages lists the available catalog languages, English first.
func (c *Catalog) Languages() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Localizer picks the best catalog for prefs. Entries may be BCP 47 tags,
// Accept-Language values or POSIX locales such as zh_CN.UTF-8.
func (c *Catalog) Localizer(prefs ...string) *Localizer {
	normalized := make([]string, 0, len(prefs))
	for _, pref := range prefs {
		if p := normalizeLocale(pref); p != "" {
			normalized = append(normalized, p)
		}
	}
	_, index := language.MatchStrings(c.matcher, normalized...)
	return &Localizer{
		tag:      c.tags[index],
		table:    c.tables[index],
		fallback: c.tables[0],
	}
}

// normalizeLocale strips encoding and modifier suffixes from POSIX locale
// names. "C" and "POSIX" carry no language and are dropped.
func normalizeLocale(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.IndexAny(value, ".@"); i >= 0 {
		value = value[:i]
	}
	if value == "C" || value == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(value, "_", "-")
}

// Localizer resolves keys in one language.
type Localizer struct {
	tag      language.Tag
	table    map[string]string
	fallback map[string]string
}

// Language returns the selected catalog language.
func (l *Localizer) Language() language.Tag { return l.tag }

// Get returns the string for key with {{name}} placeholders replaced from
// args. Unknown keys render as the key itself.
func (l *Localizer) Get(key string, args map[string]any) string {
	text, ok := l.table[key]
	if !ok {
		text, ok = l.fallback[key]
	}
	if !ok {
		text = key
	}
	for name, value := range args {
		text = strings.ReplaceAll(text, "{{"+name+"}}", fmt.Sprint(value))
	}
	return text
}

// Text returns the English string for key. It is the fallback used when no
// Lookup is wired.
func Text(key string, args map[string]any) string {
	return Default().Localizer().Get(key, args)
}

// Get resolves key through lookup, or through the embedded English catalog
// when lookup is nil.
func Get(lookup Lookup, key string, args map[string]any) string {
	if lookup == nil {
		return Text(key, args)
	}
	return lookup.Get(key, args)
}
