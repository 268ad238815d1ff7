package jmix

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "jmix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexPackageRoundTripsByID(t *testing.T) {
	idx := newTestIndex(t)

	pkg := PackageInfo{ID: "pkg-1", StudyUID: "1.2.3", Path: "/store/pkg-1", CreatedAt: time.Now()}
	require.NoError(t, idx.IndexPackage(pkg))

	got, err := idx.GetByID("pkg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pkg.StudyUID, got.StudyUID)
	assert.Equal(t, pkg.Path, got.Path)
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	idx := newTestIndex(t)

	got, err := idx.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueryByStudyUIDReturnsOnlyMatchingPrefix(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.IndexPackage(PackageInfo{ID: "a", StudyUID: "1.2.3", CreatedAt: time.Now()}))
	require.NoError(t, idx.IndexPackage(PackageInfo{ID: "b", StudyUID: "1.2.3", CreatedAt: time.Now()}))
	require.NoError(t, idx.IndexPackage(PackageInfo{ID: "c", StudyUID: "1.2.3.4", CreatedAt: time.Now()}))

	matches, err := idx.QueryByStudyUID("1.2.3")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestRemovePackageDeletesFromBothBuckets(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.IndexPackage(PackageInfo{ID: "a", StudyUID: "1.2.3", CreatedAt: time.Now()}))
	require.NoError(t, idx.RemovePackage("a"))

	got, err := idx.GetByID("a")
	require.NoError(t, err)
	assert.Nil(t, got)

	matches, err := idx.QueryByStudyUID("1.2.3")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestExistsReflectsIndexState(t *testing.T) {
	idx := newTestIndex(t)

	ok, err := idx.Exists("a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idx.IndexPackage(PackageInfo{ID: "a", StudyUID: "1.2.3", CreatedAt: time.Now()}))
	ok, err = idx.Exists("a")
	require.NoError(t, err)
	assert.True(t, ok)
}
