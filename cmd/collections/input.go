package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/formbricks/collections/internal/imagedecode"
	"github.com/formbricks/collections/internal/models"
)

// readInputs reads every regular file named by paths, descending into directories.
// Hidden files and directories are skipped. Files keep command-line order; directory
// contents are sorted by path.
func readInputs(paths []string) ([]models.RawImageInput, error) {
	var files []models.RawImageInput

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}

		if !info.IsDir() {
			in, err := readInput(p)
			if err != nil {
				return nil, err
			}

			files = append(files, in)

			continue
		}

		var found []string

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if path != p && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			if d.Type().IsRegular() {
				found = append(found, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}

		sort.Strings(found)

		for _, path := range found {
			in, err := readInput(path)
			if err != nil {
				return nil, err
			}

			files = append(files, in)
		}
	}

	return files, nil
}

func readInput(path string) (models.RawImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawImageInput{}, fmt.Errorf("read input: %w", err)
	}

	name := filepath.Base(path)

	return models.RawImageInput{
		Filename: name,
		Bytes:    data,
		MIMEType: imagedecode.DetectMIME(name, data),
	}, nil
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// countImages returns how many files the engine will process and report progress for:
// image MIME types within the byte limit (0 means no limit).
func countImages(files []models.RawImageInput, maxBytes int64) int {
	n := 0

	for _, f := range files {
		if !imagedecode.IsImageMIME(f.MIMEType) {
			continue
		}

		if maxBytes > 0 && int64(len(f.Bytes)) > maxBytes {
			continue
		}

		n++
	}

	return n
}
