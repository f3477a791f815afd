package services

import (
	"context"
	"testing"
	"time"

	"portfolio-cms/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCVStore(t *testing.T, maxVersions int) (*CVStore, storage.Store, *time.Time) {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	clock := time.Date(2024, 1, 2, 3, 4, 5, 678e6, time.UTC)
	s := NewCVStore(store, maxVersions)
	s.now = func() time.Time { return clock }
	return s, store, &clock
}

func TestCVStore_GetMissing(t *testing.T) {
	s, _, _ := newTestCVStore(t, 0)
	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCVStore_SaveRejectsEmpty(t *testing.T) {
	s, _, _ := newTestCVStore(t, 0)
	_, err := s.Save(context.Background(), "   \n")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestCVStore_SaveCreatesBackup(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestCVStore(t, 0)

	res, err := s.Save(ctx, "# CV v1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Backup)
	assert.Equal(t, "2024-01-02T03:04:05.678Z", res.Timestamp)

	*clock = clock.Add(time.Second)
	res, err = s.Save(ctx, "# CV v2")
	require.NoError(t, err)
	assert.Equal(t, "CV-2024-01-02T03-04-06-678Z.md", res.Backup)

	doc, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "# CV v2", doc.Content)
	assert.NotEmpty(t, doc.Path)

	old, err := s.GetVersion(ctx, res.Backup)
	require.NoError(t, err)
	assert.Equal(t, "# CV v1", old)
}

func TestCVStore_ListVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newTestCVStore(t, 0)

	for _, content := range []string{"a", "b", "c", "d"} {
		_, err := s.Save(ctx, content)
		require.NoError(t, err)
		*clock = clock.Add(time.Minute)
	}
	require.NoError(t, store.Write(ctx, "cv/versions/notes.txt", []byte("ignored")))

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "CV-2024-01-02T03-07-05-678Z.md", versions[0].Filename)
	assert.Equal(t, "CV-2024-01-02T03-05-05-678Z.md", versions[2].Filename)
	assert.EqualValues(t, 1, versions[0].Size)
}

func TestCVStore_ListVersionsEmpty(t *testing.T) {
	s, _, _ := newTestCVStore(t, 0)
	versions, err := s.ListVersions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.NotNil(t, versions)
}

func TestCVStore_GetVersionRejectsTraversal(t *testing.T) {
	s, _, _ := newTestCVStore(t, 0)
	for _, name := range []string{"", "../cv.md", "a/b.md", `a\b.md`} {
		_, err := s.GetVersion(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}
	_, err := s.GetVersion(context.Background(), "CV-missing.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCVStore_DiffVersion(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestCVStore(t, 0)

	_, err := s.Save(ctx, "name\nrole: engineer\n")
	require.NoError(t, err)
	*clock = clock.Add(time.Second)
	res, err := s.Save(ctx, "name\nrole: lead\n")
	require.NoError(t, err)

	diff, err := s.DiffVersion(ctx, res.Backup)
	require.NoError(t, err)
	assert.Contains(t, diff, "-role: engineer")
	assert.Contains(t, diff, "+role: lead")
	assert.Contains(t, diff, "+++ current")
}

func TestCVStore_PruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestCVStore(t, 2)

	for _, content := range []string{"1", "2", "3", "4", "5"} {
		_, err := s.Save(ctx, content)
		require.NoError(t, err)
		*clock = clock.Add(time.Minute)
	}

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "CV-2024-01-02T03-08-05-678Z.md", versions[0].Filename)

	content, err := s.GetVersion(ctx, versions[0].Filename)
	require.NoError(t, err)
	assert.Equal(t, "4", content)

	removed, err := s.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCVStore_SameMillisecondBackupsAreKept(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestCVStore(t, 0)

	for _, content := range []string{"# v1", "# v2", "# v3"} {
		_, err := s.Save(ctx, content)
		require.NoError(t, err)
	}

	versions, err := s.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	names := []string{versions[0].Filename, versions[1].Filename}
	assert.ElementsMatch(t, []string{"CV-2024-01-02T03-04-05-678Z.md", "CV-2024-01-02T03-04-05-678Z-1.md"}, names)

	first, err := s.GetVersion(ctx, "CV-2024-01-02T03-04-05-678Z.md")
	require.NoError(t, err)
	assert.Equal(t, "# v1", first)
	second, err := s.GetVersion(ctx, "CV-2024-01-02T03-04-05-678Z-1.md")
	require.NoError(t, err)
	assert.Equal(t, "# v2", second)
}
