package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogsHaveSameKeys(t *testing.T) {
	m, err := Load("ru")
	require.NoError(t, err)
	require.Equal(t, []string{"en", "ru"}, m.Languages())

	assert.Empty(t, m.MissingKeys("en"))

	en, err := Load("en")
	require.NoError(t, err)
	assert.Empty(t, en.MissingKeys("ru"))
}

func TestTranslator_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"l/ru.yaml": {Data: []byte("ru:\n  a:\n    b: \"привет %s\"\n  only_ru: \"да\"\n")},
		"l/en.yml":  {Data: []byte("en:\n  a:\n    b: \"hello %s\"\n")},
		"l/notes":   {Data: []byte("ignored")},
	}

	m, err := LoadFS(fsys, "l", "ru")
	require.NoError(t, err)

	en := m.Translator("en-US")
	assert.Equal(t, "en", en.Lang())
	assert.Equal(t, "hello bob", en.Tf("a.b", "bob"))
	assert.Equal(t, "да", en.T("only_ru"))
	assert.Equal(t, "missing.key", en.T("missing.key"))

	assert.Equal(t, "ru", m.Translator("de").Lang())
	assert.Equal(t, "ru", m.Default().Lang())

	assert.Equal(t, []string{"only_ru"}, m.MissingKeys("en"))

	_, err = LoadFS(fsys, "l", "fr")
	assert.Error(t, err)

	_, err = LoadFS(fsys, "empty", "ru")
	assert.Error(t, err)
}
