package dicomcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/suyashkumar/dicom"

	"github.com/aurabx/harmony/internal/dimse"
)

func TestExtractMetadataOnEmptyDatasetReturnsZeroValue(t *testing.T) {
	var ds dicom.Dataset
	meta := ExtractMetadata(&ds)
	assert.Empty(t, meta.StudyInstanceUID)
	assert.Empty(t, meta.SeriesInstanceUID)
	assert.Empty(t, meta.SOPInstanceUID)
	assert.Empty(t, meta.SOPClassUID)
	assert.Empty(t, meta.TransferSyntaxUID)
}

func TestParseBytesRejectsGarbage(t *testing.T) {
	_, err := ParseBytes([]byte("not a dicom file"))
	assert.Error(t, err)
}

func TestMetadataFromStreamUsesAlreadyParsedObject(t *testing.T) {
	var parsed dicom.Dataset
	ds := dimse.NewObjectDatasetStream(&parsed, dimse.DatasetMetadata{})

	meta, err := MetadataFromStream(ds)
	assert.NoError(t, err)
	assert.Empty(t, meta.SOPInstanceUID)
}

func TestMetadataFromStreamPropagatesParseErrorForMemoryVariant(t *testing.T) {
	ds := dimse.NewMemoryDatasetStream([]byte("not a dicom file"), dimse.DatasetMetadata{})

	_, err := MetadataFromStream(ds)
	assert.Error(t, err)
}
