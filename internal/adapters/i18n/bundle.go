// Package i18n serves the console's message catalogs and date formats.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"consent-console/internal/ports"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed messages/*.yaml
var embedded embed.FS

type catalog struct {
	Locale     string            `yaml:"locale"`
	DateFormat string            `yaml:"dateFormat"`
	Messages   map[string]string `yaml:"messages"`
}

// Bundle holds every catalog and picks one per requested locale.
type Bundle struct {
	tags     []language.Tag
	catalogs []*catalog
	matcher  language.Matcher
	loc      *time.Location
}

// NewBundle loads the embedded catalogs. defaultLocale is used when no
// requested language matches and for keys a catalog is missing.
func NewBundle(defaultLocale string, loc *time.Location) (*Bundle, error) {
	return NewBundleFS(embedded, defaultLocale, loc)
}

// NewBundleFS loads every messages/*.yaml file of fsys.
func NewBundleFS(fsys fs.FS, defaultLocale string, loc *time.Location) (*Bundle, error) {
	def, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("default locale %q: %w", defaultLocale, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	files, err := fs.Glob(fsys, "messages/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	b := &Bundle{loc: loc}
	defIdx := -1
	for _, name := range files {
		c, err := readCatalog(fsys, name)
		if err != nil {
			return nil, err
		}
		tag, err := language.Parse(c.Locale)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: locale %q: %w", name, c.Locale, err)
		}
		if tag == def {
			defIdx = len(b.tags)
		}
		b.tags = append(b.tags, tag)
		b.catalogs = append(b.catalogs, c)
	}
	if defIdx < 0 {
		return nil, fmt.Errorf("no catalog for default locale %q", defaultLocale)
	}
	// The matcher falls back to its first tag.
	b.tags[0], b.tags[defIdx] = b.tags[defIdx], b.tags[0]
	b.catalogs[0], b.catalogs[defIdx] = b.catalogs[defIdx], b.catalogs[0]
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func readCatalog(fsys fs.FS, name string) (*catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	if c.Locale == "" {
		c.Locale = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}
	if c.DateFormat == "" {
		c.DateFormat = time.RFC1123
	}
	return &c, nil
}

// Locales lists the available catalogs, default first.
func (b *Bundle) Locales() []string {
	out := make([]string, len(b.tags))
	for i, t := range b.tags {
		out[i] = t.String()
	}
	return out
}

// Localizer returns the best catalog for accept, which is either a single
// locale or an Accept-Language header value.
func (b *Bundle) Localizer(accept string) *Localizer {
	tags, _, err := language.ParseAcceptLanguage(accept)
	idx := 0
	if err == nil && len(tags) > 0 {
		_, idx, _ = b.matcher.Match(tags...)
	}
	return &Localizer{cat: b.catalogs[idx], fallback: b.catalogs[0], loc: b.loc}
}

// Localizer translates keys and formats dates for one locale.
type Localizer struct {
	cat      *catalog
	fallback *catalog
	loc      *time.Location
}

var _ ports.Localizer = (*Localizer)(nil)

// T returns the message for key with every {{name}} placeholder replaced by
// params[name]. Unknown keys are returned as is.
func (l *Localizer) T(key string, params map[string]string) string {
	msg, ok := l.cat.Messages[key]
	if !ok {
		if msg, ok = l.fallback.Messages[key]; !ok {
			msg = key
		}
	}
	if len(params) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (l *Localizer) FormatDate(t time.Time) string {
	return t.In(l.loc).Format(l.cat.DateFormat)
}

func (l *Localizer) Locale() string { return l.cat.Locale }
