package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/storage"
)

const (
	cvKey         = "cv/cv.md"
	cvVersionsDir = "cv/versions"
)

var ErrInvalidFilename = errors.New("invalid filename")

// CVStore keeps the current CV and a timestamped backup of every version it
// replaced.
type CVStore struct {
	store       storage.Store
	maxVersions int
	now         func() time.Time
}

// NewCVStore returns a CV store keeping at most maxVersions backups (0 keeps
// all of them).
func NewCVStore(store storage.Store, maxVersions int) *CVStore {
	return &CVStore{store: store, maxVersions: maxVersions, now: time.Now}
}

func (s *CVStore) Get(ctx context.Context) (*models.CVDocument, error) {
	content, err := s.store.Read(ctx, cvKey)
	if err != nil {
		return nil, fmt.Errorf("read cv: %w", err)
	}
	info, err := s.store.Stat(ctx, cvKey)
	if err != nil {
		return nil, fmt.Errorf("stat cv: %w", err)
	}
	return &models.CVDocument{
		Content:      string(content),
		LastModified: info.Modified,
		Path:         s.store.Location(cvKey),
	}, nil
}

// versionName turns a timestamp into "CV-2024-01-02T03-04-05-678Z.md". A
// second backup in the same millisecond gets a "-1" suffix, and so on.
func (s *CVStore) versionName(ctx context.Context, t time.Time) (string, error) {
	stamp := t.UTC().Format(isoMillis)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return freeName(ctx, s.store, cvVersionsDir, "CV-"+stamp, "-", ".md")
}

// Save backs up the current CV, when there is one, and replaces it with
// content. A failed backup is logged and does not stop the save.
func (s *CVStore) Save(ctx context.Context, content string) (*models.CVSaveResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	now := s.now()

	backup := ""
	current, err := s.store.Read(ctx, cvKey)
	switch {
	case err == nil:
		name, err := s.versionName(ctx, now)
		if err == nil {
			err = s.store.Write(ctx, cvVersionsDir+"/"+name, current)
		}
		if err != nil {
			slog.Warn("could not back up cv", "error", err)
		} else {
			backup = name
			slog.Info("cv backup created", "version", name)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		slog.Warn("could not read cv for backup", "error", err)
	}

	if err := s.store.Write(ctx, cvKey, []byte(content)); err != nil {
		return nil, fmt.Errorf("write cv: %w", err)
	}

	if s.maxVersions > 0 {
		if _, err := s.Prune(ctx, s.maxVersions); err != nil {
			slog.Warn("cv version pruning failed", "error", err)
		}
	}

	return &models.CVSaveResult{
		Success:   true,
		Message:   "CV updated successfully and saved to file.",
		Timestamp: now.UTC().Format(isoMillis),
		Backup:    backup,
	}, nil
}

// ListVersions returns the backups, newest first.
func (s *CVStore) ListVersions(ctx context.Context) ([]models.CVVersion, error) {
	entries, err := s.store.List(ctx, cvVersionsDir)
	if err != nil {
		return nil, fmt.Errorf("list cv versions: %w", err)
	}
	versions := []models.CVVersion{}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		versions = append(versions, models.CVVersion{
			Filename: e.Name,
			Created:  e.Modified,
			Size:     e.Size,
		})
	}
	sort.SliceStable(versions, func(i, j int) bool {
		if !versions[i].Created.Equal(versions[j].Created) {
			return versions[i].Created.After(versions[j].Created)
		}
		return strings.TrimSuffix(versions[i].Filename, ".md") > strings.TrimSuffix(versions[j].Filename, ".md")
	})
	return versions, nil
}

func validFileName(filename string) bool {
	return filename != "" && !strings.Contains(filename, "..") &&
		!strings.Contains(filename, "/") && !strings.Contains(filename, "\\")
}

func (s *CVStore) GetVersion(ctx context.Context, filename string) (string, error) {
	if !validFileName(filename) {
		return "", ErrInvalidFilename
	}
	content, err := s.store.Read(ctx, cvVersionsDir+"/"+filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// DiffVersion diffs a backup against the current CV.
func (s *CVStore) DiffVersion(ctx context.Context, filename string) (string, error) {
	old, err := s.GetVersion(ctx, filename)
	if err != nil {
		return "", err
	}
	current := ""
	data, err := s.store.Read(ctx, cvKey)
	switch {
	case err == nil:
		current = string(data)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return "", err
	}
	return Diff(old, current, filename, "current")
}

// Prune deletes all but the newest keep backups and returns how many it
// removed.
func (s *CVStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	versions, err := s.ListVersions(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, v := range versions[min(keep, len(versions)):] {
		if err := s.store.Delete(ctx, cvVersionsDir+"/"+v.Filename); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, fmt.Errorf("delete %s: %w", v.Filename, err)
		}
		removed++
	}
	if removed > 0 {
		slog.Info("pruned cv versions", "removed", removed, "kept", keep)
	}
	return removed, nil
}
