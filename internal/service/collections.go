package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/formbricks/collections/internal/blobs"
	"github.com/formbricks/collections/internal/models"
)

// DefaultCollectionLimit is the number of collections an owner may hold.
const DefaultCollectionLimit = 15

// CollectionsRepository persists collections and their image bytes.
type CollectionsRepository interface {
	PutImage(ctx context.Context, ownerID, clusterID string, data []byte, filename string) (string, error)
	PutClusterRecord(ctx context.Context, ownerID string, record models.ClusterRecord) (string, error)
	ListClusters(ctx context.Context, ownerID string) ([]models.ClusterRecord, error)
	DeleteCluster(ctx context.Context, ownerID, clusterID string) error
}

// SaveResult reports what Save did with each record.
type SaveResult struct {
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Skipped       int      `json:"skipped"`
	SkippedTitles []string `json:"skipped_titles,omitempty"`
}

// CollectionsService saves engine output as an owner's collections.
type CollectionsService struct {
	repo  CollectionsRepository
	blobs *blobs.Store
	limit int
}

// NewCollectionsService creates a collections service. A non-positive limit uses DefaultCollectionLimit.
func NewCollectionsService(repo CollectionsRepository, store *blobs.Store, limit int) *CollectionsService {
	if limit <= 0 {
		limit = DefaultCollectionLimit
	}

	return &CollectionsService{repo: repo, blobs: store, limit: limit}
}

// Save persists records for the owner. A record whose title matches an existing collection
// (ignoring case) is merged into it; any other record creates a collection unless the owner
// is at the limit. Image handles are revoked once stored, and right away for skipped records.
func (s *CollectionsService) Save(ctx context.Context, ownerID string, records []models.ClusterRecord) (SaveResult, error) {
	var result SaveResult

	existing, err := s.repo.ListClusters(ctx, ownerID)
	if err != nil {
		return result, fmt.Errorf("failed to list collections: %w", err)
	}

	byTitle := make(map[string]int, len(existing))
	for i, c := range existing {
		byTitle[strings.ToLower(c.Title)] = i
	}

	for _, rec := range records {
		key := strings.ToLower(rec.Title)

		target := rec
		merging := false

		if i, ok := byTitle[key]; ok {
			target = mergeRecords(existing[i], rec)
			merging = true
		} else if len(existing) >= s.limit {
			slog.WarnContext(ctx, "collection limit reached, skipping",
				"owner_id", ownerID, "title", rec.Title, "limit", s.limit)
			result.Skipped++
			result.SkippedTitles = append(result.SkippedTitles, rec.Title)
			s.revokeImages(rec.Images)

			continue
		}

		uploaded, err := s.uploadImages(ctx, ownerID, target.ID, rec.Images)
		if err != nil {
			return result, err
		}

		if merging {
			target.Images = append(target.Images[:len(target.Images)-len(rec.Images)], uploaded...)
		} else {
			target.Images = uploaded
		}

		if _, err := s.repo.PutClusterRecord(ctx, ownerID, target); err != nil {
			return result, fmt.Errorf("failed to save collection %q: %w", rec.Title, err)
		}

		if merging {
			existing[byTitle[key]] = target
			result.Updated++
		} else {
			byTitle[key] = len(existing)
			existing = append(existing, target)
			result.Created++
		}
	}

	slog.InfoContext(ctx, "collections saved",
		"owner_id", ownerID, "created", result.Created, "updated", result.Updated, "skipped", result.Skipped)

	return result, nil
}

// uploadImages copies the bytes behind each handle to the repository and rewrites the URL.
// Images whose URL is not a live handle are kept as they are.
func (s *CollectionsService) uploadImages(ctx context.Context, ownerID, clusterID string, images []models.ImageRef) ([]models.ImageRef, error) {
	out := make([]models.ImageRef, len(images))

	for i, img := range images {
		out[i] = img

		if s.blobs == nil || !blobs.IsHandle(img.URL) {
			continue
		}

		blob, err := s.blobs.Resolve(img.URL)
		if err != nil {
			slog.WarnContext(ctx, "image handle no longer available", "image_id", img.ID, "url", img.URL)

			continue
		}

		stored, err := s.repo.PutImage(ctx, ownerID, clusterID, blob.Bytes, img.Alt)
		if err != nil {
			return nil, fmt.Errorf("failed to store image %s: %w", img.ID, err)
		}

		s.blobs.Revoke(img.URL)
		out[i].URL = stored
	}

	return out, nil
}

// revokeImages drops the handles of images that will not be stored.
func (s *CollectionsService) revokeImages(images []models.ImageRef) {
	if s.blobs == nil {
		return
	}

	for _, img := range images {
		if blobs.IsHandle(img.URL) {
			s.blobs.Revoke(img.URL)
		}
	}
}

// List returns the owner's collections.
func (s *CollectionsService) List(ctx context.Context, ownerID string) ([]models.ClusterRecord, error) {
	return s.repo.ListClusters(ctx, ownerID)
}

// Delete removes one of the owner's collections.
func (s *CollectionsService) Delete(ctx context.Context, ownerID, clusterID string) error {
	return s.repo.DeleteCluster(ctx, ownerID, clusterID)
}

// mergeRecords folds an incoming record into an existing collection: tags are unioned in
// first-seen order, description and palette are replaced and images are appended.
func mergeRecords(existing, incoming models.ClusterRecord) models.ClusterRecord {
	merged := existing

	seen := make(map[string]bool, len(existing.Tags)+len(incoming.Tags))
	merged.Tags = make([]string, 0, len(existing.Tags)+len(incoming.Tags))

	for _, t := range append(append([]string{}, existing.Tags...), incoming.Tags...) {
		if !seen[t] {
			seen[t] = true
			merged.Tags = append(merged.Tags, t)
		}
	}

	merged.Description = incoming.Description
	merged.Palette = incoming.Palette
	merged.Moods = incoming.Moods

	merged.Images = make([]models.ImageRef, 0, len(existing.Images)+len(incoming.Images))
	merged.Images = append(merged.Images, existing.Images...)
	merged.Images = append(merged.Images, incoming.Images...)

	if len(incoming.Centroid) > 0 {
		merged.Centroid = incoming.Centroid
	}

	return merged
}
