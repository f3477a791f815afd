package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"portfolio-cms/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func newTestMediaStore(t *testing.T, maxBytes int64) *MediaStore {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	m := NewMediaStore(store, maxBytes)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	return m
}

func TestMediaStore_SaveListOpenDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestMediaStore(t, 1<<20)

	file, err := m.Save(ctx, "My Photo!.PNG", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "My_Photo_1700000000.png", file.Name)
	assert.Equal(t, "/media/My_Photo_1700000000.png", file.URL)
	assert.Equal(t, "image/png", file.ContentType)
	assert.EqualValues(t, len(pngBytes), file.Size)

	files, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, file.Name, files[0].Name)

	data, ctype, err := m.Open(ctx, file.Name)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", ctype)

	require.NoError(t, m.DeleteMediaFile(ctx, file.Name))
	assert.ErrorIs(t, m.DeleteMediaFile(ctx, file.Name), storage.ErrNotFound)

	files, err = m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMediaStore_StripsDirectories(t *testing.T) {
	m := newTestMediaStore(t, 0)
	file, err := m.Save(context.Background(), `..\..\evil.png`, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "evil_1700000000.png", file.Name)
}

func TestMediaStore_RejectsNonImages(t *testing.T) {
	ctx := context.Background()
	m := newTestMediaStore(t, 0)

	_, err := m.Save(ctx, "notes.png", strings.NewReader("just some text, not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	svg := `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`
	_, err = m.Save(ctx, "logo.svg", strings.NewReader(svg))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestMediaStore_TooLarge(t *testing.T) {
	m := newTestMediaStore(t, 16)
	_, err := m.Save(context.Background(), "big.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestMediaStore_InvalidNames(t *testing.T) {
	ctx := context.Background()
	m := newTestMediaStore(t, 0)

	_, _, err := m.Open(ctx, "../cv/cv.md")
	assert.ErrorIs(t, err, ErrInvalidFilename)
	assert.ErrorIs(t, m.DeleteMediaFile(ctx, "a/b.png"), ErrInvalidFilename)

	_, _, err = m.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMediaStore_SameSecondUploadsGetDistinctNames(t *testing.T) {
	ctx := context.Background()
	m := newTestMediaStore(t, 0)

	a, err := m.Save(ctx, "photo.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	b, err := m.Save(ctx, "photo.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	c, err := m.Save(ctx, "photo.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	assert.Equal(t, "photo_1700000000.png", a.Name)
	assert.Equal(t, "photo_1700000000_1.png", b.Name)
	assert.Equal(t, "photo_1700000000_2.png", c.Name)

	files, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}
