package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"portfolio-cms/pkg/models"
	"portfolio-cms/pkg/storage"

	"github.com/gabriel-vasile/mimetype"
)

const mediaPrefix = "media"

var (
	ErrUnsupportedMedia = errors.New("only image uploads are allowed")
	ErrFileTooLarge     = errors.New("file too large")
)

// MediaStore keeps uploaded images under media/.
type MediaStore struct {
	store    storage.Store
	maxBytes int64
	now      func() time.Time
}

func NewMediaStore(store storage.Store, maxBytes int64) *MediaStore {
	return &MediaStore{store: store, maxBytes: maxBytes, now: time.Now}
}

func mediaURL(name string) string { return "/media/" + name }

func (m *MediaStore) List(ctx context.Context) ([]models.MediaFile, error) {
	entries, err := m.store.List(ctx, mediaPrefix)
	if err != nil {
		return nil, err
	}
	files := []models.MediaFile{}
	for _, e := range entries {
		files = append(files, models.MediaFile{
			Name: e.Name,
			Path: mediaURL(e.Name),
			Size: e.Size,
			URL:  mediaURL(e.Name),
		})
	}
	return files, nil
}

// SaveMediaFile stores an uploaded image under a unique, sanitized name.
func (m *MediaStore) SaveMediaFile(ctx context.Context, header *multipart.FileHeader) (*models.MediaFile, error) {
	if m.maxBytes > 0 && header.Size > m.maxBytes {
		return nil, ErrFileTooLarge
	}
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return m.Save(ctx, header.Filename, src)
}

// Save stores image data read from r. The stored name is the sanitized base
// name plus "_<unix seconds>" and the original extension, with a "_N" suffix
// when that name is taken.
func (m *MediaStore) Save(ctx context.Context, filename string, r io.Reader) (*models.MediaFile, error) {
	limit := m.maxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") || mtype.Is("image/svg+xml") {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedMedia, mtype.String())
	}

	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = mtype.Extension()
	}
	base := SanitizeFilename(strings.TrimSuffix(filename, filepath.Ext(filename)))
	base = strings.Trim(base, "._")
	if base == "" {
		base = "image"
	}
	name, err := freeName(ctx, m.store, mediaPrefix, fmt.Sprintf("%s_%d", base, m.now().Unix()), "_", SanitizeFilename(ext))
	if err != nil {
		return nil, err
	}

	if err := m.store.Write(ctx, mediaPrefix+"/"+name, data); err != nil {
		return nil, fmt.Errorf("write media: %w", err)
	}
	return &models.MediaFile{
		Name:        name,
		Path:        mediaURL(name),
		Size:        int64(len(data)),
		URL:         mediaURL(name),
		ContentType: mtype.String(),
	}, nil
}

// Open returns a stored file and its detected content type.
func (m *MediaStore) Open(ctx context.Context, name string) ([]byte, string, error) {
	if !validFileName(name) {
		return nil, "", ErrInvalidFilename
	}
	data, err := m.store.Read(ctx, mediaPrefix+"/"+name)
	if err != nil {
		return nil, "", err
	}
	return data, mimetype.Detect(data).String(), nil
}

func (m *MediaStore) DeleteMediaFile(ctx context.Context, name string) error {
	if !validFileName(name) {
		return ErrInvalidFilename
	}
	return m.store.Delete(ctx, mediaPrefix+"/"+name)
}
