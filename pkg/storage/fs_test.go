package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFSStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "articles/drafts/hello.md", []byte("# Hello")))

	data, err := s.Read(ctx, "articles/drafts/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "# Hello", string(data))

	info, err := s.Stat(ctx, "articles/drafts/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "hello.md", info.Name)
	assert.Equal(t, int64(7), info.Size)
}

func TestFSStore_WriteOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "cv/cv.md", []byte("one")))
	require.NoError(t, s.Write(ctx, "cv/cv.md", []byte("two")))

	data, err := s.Read(ctx, "cv/cv.md")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(s.root, "cv"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFSStore_MissingKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Read(ctx, "nope.md")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Stat(ctx, "nope.md")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Delete(ctx, "nope.md")
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err := s.List(ctx, "missing/dir")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []string{"../secret", "a/../../b", "/etc/passwd", ""} {
		t.Run(key, func(t *testing.T) {
			assert.Equal(t, "", s.SafeJoin(key))
			_, err := s.Read(ctx, key)
			assert.True(t, errors.Is(err, ErrInvalidKey))
			assert.True(t, errors.Is(s.Write(ctx, key, []byte("x")), ErrInvalidKey))
		})
	}
}

func TestFSStore_ListIsShallowAndSorted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "articles/b.md", []byte("b")))
	require.NoError(t, s.Write(ctx, "articles/a.md", []byte("a")))
	require.NoError(t, s.Write(ctx, "articles/drafts/c.md", []byte("c")))

	list, err := s.List(ctx, "articles")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "articles/a.md", list[0].Key)
	assert.Equal(t, "articles/b.md", list[1].Key)

	list, err = s.List(ctx, "articles/drafts/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c.md", list[0].Name)
}

func TestFSStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, "media/x.png", []byte("png")))
	require.NoError(t, s.Delete(ctx, "media/x.png"))

	_, err := s.Read(ctx, "media/x.png")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b.md", want: "a/b.md"},
		{in: "a//b.md", want: "a/b.md"},
		{in: "a/./b.md", want: "a/b.md"},
		{in: `a\b.md`, want: "a/b.md"},
		{in: "..", wantErr: true},
		{in: "a/../b", wantErr: true},
		{in: "/abs", wantErr: true},
		{in: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{Backend: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "fs", s.Name())

	_, err = New(ctx, Config{Backend: "s3"})
	assert.Error(t, err)

	_, err = New(ctx, Config{Backend: "ftp"})
	assert.Error(t, err)
}

func TestS3Store_KeyMapping(t *testing.T) {
	s := &S3Store{bucket: "site", prefix: "portfolio"}
	assert.Equal(t, "portfolio/cv/cv.md", s.objectKey("cv/cv.md"))
	assert.Equal(t, "cv/cv.md", s.storeKey("portfolio/cv/cv.md"))
	assert.Equal(t, "s3://site/portfolio/cv/cv.md", s.Location("cv/cv.md"))

	bare := &S3Store{bucket: "site"}
	assert.Equal(t, "cv/cv.md", bare.objectKey("cv/cv.md"))
	assert.Equal(t, "text/markdown; charset=utf-8", contentTypeFor("a.md"))
	assert.Equal(t, "image/png", contentTypeFor("a.PNG"))
}
