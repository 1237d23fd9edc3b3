package i18n

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := NewBundle("en", time.FixedZone("CET", 3600))
	require.NoError(t, err)
	return b
}

func TestBundle_MatchesLocale(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, []string{"en", "de"}, b.Locales())
	assert.Equal(t, "de", b.Localizer("de").Locale())
	assert.Equal(t, "de", b.Localizer("de-CH,de;q=0.9,en;q=0.5").Locale())
	assert.Equal(t, "en", b.Localizer("fr-FR").Locale())
	assert.Equal(t, "en", b.Localizer("").Locale())
	assert.Equal(t, "en", b.Localizer("!!").Locale())
}

func TestLocalizer_T(t *testing.T) {
	b := newTestBundle(t)
	en := b.Localizer("en")
	de := b.Localizer("de")

	assert.Equal(t, "Applications", en.T("application", nil))
	assert.Equal(t, "Anwendungen", de.T("application", nil))
	assert.Equal(t, "Could not load applications: timeout", en.T("loadApplicationsError", map[string]string{"error": "timeout"}))
	assert.Contains(t, de.T("removeModalMessage", map[string]string{"name": "app1"}), "für app1 entfernt")
	assert.Equal(t, "profile", en.T("profile", nil), "unknown keys fall back to the key")
	assert.Equal(t, "User profile", en.T("profileScopeConsentText", nil))
}

func TestLocalizer_FormatDate(t *testing.T) {
	b := newTestBundle(t)
	ts := time.UnixMilli(1700000000000)

	assert.Equal(t, "November 14, 2023 at 11:13 PM", b.Localizer("en").FormatDate(ts))
	assert.Equal(t, "14.11.2023, 23:13", b.Localizer("de").FormatDate(ts))
}

func TestCatalogsAreComplete(t *testing.T) {
	b := newTestBundle(t)
	def := b.catalogs[0]
	for _, c := range b.catalogs[1:] {
		for key := range def.Messages {
			assert.Contains(t, c.Messages, key, "catalog %s is missing %s", c.Locale, key)
		}
	}
}

func TestNewBundleFS(t *testing.T) {
	fsys := fstest.MapFS{
		"messages/en.yaml": {Data: []byte("messages:\n  hello: Hello {{name}}\n")},
		"messages/nl.yaml": {Data: []byte("locale: nl\nmessages:\n  bye: Dag\n")},
	}
	b, err := NewBundleFS(fsys, "en", nil)
	require.NoError(t, err)

	nl := b.Localizer("nl-BE")
	assert.Equal(t, "nl", nl.Locale())
	assert.Equal(t, "Dag", nl.T("bye", nil))
	assert.Equal(t, "Hello Ann", nl.T("hello", map[string]string{"name": "Ann"}), "missing keys come from the default catalog")

	_, err = NewBundleFS(fsys, "fr", nil)
	assert.Error(t, err)

	_, err = NewBundleFS(fstest.MapFS{"messages/en.yaml": {Data: []byte("messages: [")}}, "en", nil)
	assert.Error(t, err)
}
