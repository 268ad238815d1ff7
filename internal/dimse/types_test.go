package dimse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetMetadata(t *testing.T) {
	meta := DatasetMetadata{
		StudyInstanceUID:  "1.2.3",
		SeriesInstanceUID: "1.2.3.4",
		SOPInstanceUID:    "1.2.3.4.5",
	}
	ds := NewMemoryDatasetStream([]byte("abc"), meta)
	assert.Equal(t, "1.2.3", ds.Meta.StudyInstanceUID)
	assert.Equal(t, []byte("abc"), ds.Bytes())
	assert.False(t, ds.IsFile())
}

func TestFindQueryBuilder(t *testing.T) {
	q := NewFindQuery(LevelPatient).WithParam("PatientID", "12345").WithMaxResults(10)
	assert.Equal(t, LevelPatient, q.Level)
	assert.Equal(t, "12345", q.Params["PatientID"])
	assert.Equal(t, 10, q.MaxResults)
}

func TestMoveQueryBuilder(t *testing.T) {
	q := NewMoveQuery(LevelStudy, "DEST_AET").WithPriority(PriorityHigh)
	assert.Equal(t, LevelStudy, q.Level)
	assert.Equal(t, "DEST_AET", q.Destination)
	assert.Equal(t, PriorityHigh, q.Priority)
}

func TestQueryLevelParsing(t *testing.T) {
	level, err := ParseQueryLevel("study")
	require.NoError(t, err)
	assert.Equal(t, LevelStudy, level)

	level, err = ParseQueryLevel("INSTANCE")
	require.NoError(t, err)
	assert.Equal(t, LevelImage, level)

	_, err = ParseQueryLevel("bogus")
	assert.Error(t, err)
}

func TestFileDatasetStreamDeletesOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.dcm")
	require.NoError(t, os.WriteFile(path, []byte("dicom"), 0o644))

	ds := NewFileDatasetStream(path, DatasetMetadata{}, true)
	require.NoError(t, ds.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Idempotent: closing again must not error even though the file is gone.
	assert.NoError(t, ds.Close())
}

func TestFileDatasetStreamWithoutDeleteOnDropLeavesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.dcm")
	require.NoError(t, os.WriteFile(path, []byte("dicom"), 0o644))

	ds := NewFileDatasetStream(path, DatasetMetadata{}, false)
	require.NoError(t, ds.Close())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
