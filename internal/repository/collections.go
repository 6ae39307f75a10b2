package repository

import (
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrCollectionNotFound is returned when a collection does not exist for the owner.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrInvalidOwner is returned for an empty owner id.
var ErrInvalidOwner = errors.New("owner id is required")

// ImagePath returns the storage path for an uploaded image: <owner>/<cluster>/<uuid>-<filename>.
// The filename is reduced to its base name so it cannot escape the cluster prefix.
func ImagePath(ownerID, clusterID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}

	return ownerID + "/" + clusterID + "/" + uuid.NewString() + "-" + base
}
