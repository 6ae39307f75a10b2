package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	v := Default()

	require.NoError(t, v.Validate())
	assert.Len(t, v.Categories, 5)
	assert.Equal(t, "design_discipline", v.Categories[0].Name)
	assert.Contains(t, v.Labels(), "dashboard UI")
}

func TestParseKeepsOrder(t *testing.T) {
	doc := []byte(`
subject: [cat, dog]
style:
  - photograph
  - line art
mood: [calm]
`)

	v, err := Parse(doc)
	require.NoError(t, err)

	names := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		names[i] = c.Name
	}

	assert.Equal(t, []string{"subject", "style", "mood"}, names)
	assert.Equal(t, []string{"photograph", "line art"}, v.Categories[1].Labels)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"sequence root", "- cat\n- dog\n"},
		{"empty category", "subject: []\n"},
		{"blank label", "subject: [cat, \" \"]\n"},
		{"labels not a list", "subject: cat\n"},
		{"empty document", ""},
		{"blank category name", "\" \": [cat]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsFields(t *testing.T) {
	tests := []struct {
		name  string
		vocab *Vocabulary
		want  string
	}{
		{"no categories", &Vocabulary{}, "Categories must not be empty"},
		{"no labels", &Vocabulary{Categories: []Category{{Name: "subject"}}}, "Categories[0].Labels must not be empty"},
		{"blank label", &Vocabulary{Categories: []Category{{Name: "subject", Labels: []string{"cat", "  "}}}}, "Categories[0].Labels[1] must not be blank"},
		{"blank name", &Vocabulary{Categories: []Category{{Name: "", Labels: []string{"cat"}}}}, "Categories[0].Name must not be blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vocab.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLabelsDeduplicates(t *testing.T) {
	v := &Vocabulary{Categories: []Category{
		{Name: "a", Labels: []string{"cat", "dog"}},
		{Name: "b", Labels: []string{"dog", "bird"}},
	}}

	assert.Equal(t, []string{"cat", "dog", "bird"}, v.Labels())
}

func TestLoad(t *testing.T) {
	t.Run("empty path yields default", func(t *testing.T) {
		v, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), v)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.yaml")
		require.NoError(t, os.WriteFile(path, []byte("subject: [cat]\n"), 0o600))

		v, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat"}, v.Labels())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
