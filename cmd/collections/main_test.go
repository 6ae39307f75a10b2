package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/models"
	"github.com/formbricks/collections/internal/service"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-owner", "me", "-json", "a.png", "dir"})
	require.NoError(t, err)
	assert.Equal(t, "me", opts.owner)
	assert.True(t, opts.jsonOut)
	assert.Equal(t, []string{"a.png", "dir"}, opts.paths)

	_, err = parseFlags([]string{"-list"})
	require.Error(t, err)

	opts, err = parseFlags([]string{"-list", "-owner", "me"})
	require.NoError(t, err)
	assert.True(t, opts.list)

	_, err = parseFlags(nil)
	assert.Error(t, err)
}

func TestReadInputs(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("\x89PNG\r\n\x1a\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c"), []byte("\x89PNG\r\n\x1a\n"), 0o600))

	files, err := readInputs([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "a.txt", files[0].Filename)
	assert.True(t, strings.HasPrefix(files[0].MIMEType, "text/plain"), files[0].MIMEType)
	assert.Equal(t, "b.png", files[1].Filename)
	assert.Equal(t, "image/png", files[1].MIMEType)
	assert.Equal(t, "c", files[2].Filename)
	assert.Equal(t, "image/png", files[2].MIMEType)

	_, err = readInputs([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestCountImages(t *testing.T) {
	files := []models.RawImageInput{
		{Filename: "a.png", MIMEType: "image/png", Bytes: make([]byte, 10)},
		{Filename: "notes.txt", MIMEType: "text/plain; charset=utf-8", Bytes: make([]byte, 4)},
		{Filename: "b.jpg", MIMEType: "image/jpeg", Bytes: make([]byte, 100)},
	}

	assert.Equal(t, 2, countImages(files, 0))
	assert.Equal(t, 1, countImages(files, 50))
	assert.Equal(t, 0, countImages(nil, 0))
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer

	printResult(&buf, result{
		Summary: models.BatchSummary{Outcome: models.OutcomeClustered, Clusters: 1, Succeeded: 2, Skipped: 1},
		Clusters: []models.ClusterRecord{{
			ID:          "c1",
			Title:       "Cat Collection",
			Description: "A collection of 2 images related to: cat",
			Images:      []models.ImageRef{{ID: "a", Alt: "a.png"}, {ID: "b", Alt: "b.png"}},
			Palette:     []string{"#112233"},
		}},
		Saved: &service.SaveResult{Created: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "Cat Collection")
	assert.Contains(t, out, "1 collection(s) created from 2 image(s)")
	assert.Contains(t, out, "palette: #112233")
	assert.Contains(t, out, "- b.png")
	assert.Contains(t, out, "1 created")
}
