package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"lcdmatch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDatabase(filepath.Join(t.TempDir(), "references.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func reference(name, path, group string) types.ReferenceInfo {
	return types.ReferenceInfo{
		Name:           name,
		Path:           path,
		Group:          group,
		Format:         "png",
		Width:          640,
		Height:         480,
		Size:           1234,
		IsRender:       true,
		AverageHash:    0xFFFF0000FFFF0000,
		PerceptualHash: 0x8000000000000001,
		ModifiedAt:     "2024-05-01T10:00:00Z",
	}
}

func TestStoreAndGetReference(t *testing.T) {
	db := newTestDB(t)
	want := reference("checker", "/patterns/checker.png", "panel-a")
	require.NoError(t, StoreReference(db, want, false))

	got, err := GetReference(db, "checker", "panel-a")
	require.NoError(t, err)

	assert.NotZero(t, got.ID)
	assert.NotEmpty(t, got.RegisteredAt)
	got.ID, got.RegisteredAt = 0, ""
	assert.Equal(t, want, got)
}

func TestGetReferenceNotFound(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, StoreReference(db, reference("checker", "/p/checker.png", "panel-a"), false))

	_, err := GetReference(db, "missing", "")
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = GetReference(db, "checker", "panel-b")
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestGetReferenceAnyGroupPrefersLatest(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, StoreReference(db, reference("checker", "/a/checker.png", "panel-a"), false))
	require.NoError(t, StoreReference(db, reference("checker", "/b/checker.png", "panel-b"), false))

	got, err := GetReference(db, "checker", "")
	require.NoError(t, err)
	assert.Equal(t, "/b/checker.png", got.Path)
}

func TestStoreReferenceForceRewrite(t *testing.T) {
	db := newTestDB(t)
	info := reference("checker", "/p/checker.png", "")
	require.NoError(t, StoreReference(db, info, false))

	info.Width = 320
	require.NoError(t, StoreReference(db, info, false))
	got, err := GetReference(db, "checker", "")
	require.NoError(t, err)
	assert.Equal(t, 640, got.Width)

	require.NoError(t, StoreReference(db, info, true))
	got, err = GetReference(db, "checker", "")
	require.NoError(t, err)
	assert.Equal(t, 320, got.Width)

	refs, err := ListReferences(db, "")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestCheckReferenceExists(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, StoreReference(db, reference("checker", "/p/checker.png", "g"), false))

	exists, modTime, err := CheckReferenceExists(db, "/p/checker.png", "g")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "2024-05-01T10:00:00Z", modTime)

	exists, _, err = CheckReferenceExists(db, "/p/checker.png", "other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListReferencesAndStats(t *testing.T) {
	db := newTestDB(t)
	photo := reference("stripes", "/p/stripes.jpg", "panel-a")
	photo.IsRender = false
	photo.PerceptualHash = 42

	require.NoError(t, StoreReference(db, reference("checker", "/p/checker.png", "panel-a"), false))
	require.NoError(t, StoreReference(db, photo, false))
	require.NoError(t, StoreReference(db, reference("bars", "/q/bars.png", "panel-b"), false))

	all, err := ListReferences(db, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"bars", "checker", "stripes"}, []string{all[0].Name, all[1].Name, all[2].Name})

	groupA, err := ListReferences(db, "panel-a")
	require.NoError(t, err)
	assert.Len(t, groupA, 2)

	stats, err := GetCatalogStats(db, "panel-a")
	require.NoError(t, err)
	assert.Equal(t, &CatalogStats{TotalReferences: 2, RenderedReferences: 1, UniqueHashes: 2}, stats)

	stats, err = GetCatalogStats(db, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalReferences)
	assert.Equal(t, 2, stats.UniqueHashes)
}

func TestInitDatabaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "references.db")
	db, err := InitDatabase(path)
	require.NoError(t, err)
	require.NoError(t, StoreReference(db, reference("checker", "/p/checker.png", ""), false))
	require.NoError(t, db.Close())

	db, err = InitDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	refs, err := ListReferences(db, "")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}
