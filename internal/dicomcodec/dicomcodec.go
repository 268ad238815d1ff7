// Package dicomcodec is the one seam where Harmony actually parses DICOM
// bytes: extracting the handful of identifying tags (SOP/Study/Series
// Instance UID, Transfer Syntax UID) a DatasetStream needs to report
// itself without understanding pixel data. Everything else about DICOM
// parsing and pixel-data decoding is out of scope (spec.md's explicit
// non-goal), so this package stays a thin wrapper over suyashkumar/dicom
// rather than a DICOM library of its own.
package dicomcodec

import (
	"bytes"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/aurabx/harmony/internal/dimse"
)

// ParseBytes parses a complete DICOM file held in memory.
func ParseBytes(data []byte) (*dicom.Dataset, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("dicomcodec: parse: %w", err)
	}
	return &ds, nil
}

// ParseFile parses a complete DICOM file on disk.
func ParseFile(path string) (*dicom.Dataset, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("dicomcodec: parse %s: %w", path, err)
	}
	return &ds, nil
}

// ExtractMetadata reads the identifying tags dimse.DatasetMetadata carries
// out of a parsed dataset. Missing tags are left as the zero value rather
// than treated as an error — not every DICOM object carries every UID
// (e.g. a Study-level query result has no SOPInstanceUID).
func ExtractMetadata(ds *dicom.Dataset) dimse.DatasetMetadata {
	return dimse.DatasetMetadata{
		StudyInstanceUID:  stringValue(ds, tag.StudyInstanceUID),
		SeriesInstanceUID: stringValue(ds, tag.SeriesInstanceUID),
		SOPInstanceUID:    stringValue(ds, tag.SOPInstanceUID),
		SOPClassUID:       stringValue(ds, tag.SOPClassUID),
		TransferSyntaxUID: stringValue(ds, tag.TransferSyntaxUID),
	}
}

func stringValue(ds *dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return ""
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

// MetadataFromStream extracts dimse.DatasetMetadata straight from a
// DatasetStream's backing bytes/file/already-parsed object, used by
// PipelineQueryProvider.Store to fill in identifying tags the caller left
// unset (spec.md §3: "DatasetStream ... Object(parsed, meta)").
func MetadataFromStream(ds *dimse.DatasetStream) (dimse.DatasetMetadata, error) {
	if parsed, ok := ds.Object().(*dicom.Dataset); ok {
		return ExtractMetadata(parsed), nil
	}
	if ds.IsFile() {
		parsed, err := ParseFile(ds.Path())
		if err != nil {
			return dimse.DatasetMetadata{}, err
		}
		return ExtractMetadata(parsed), nil
	}
	parsed, err := ParseBytes(ds.Bytes())
	if err != nil {
		return dimse.DatasetMetadata{}, err
	}
	return ExtractMetadata(parsed), nil
}

// ToDatasetStream parses data and wraps the result as an Object-variant
// DatasetStream whose Meta is pre-populated from the parsed tags.
func ToDatasetStream(data []byte) (*dimse.DatasetStream, error) {
	parsed, err := ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return dimse.NewObjectDatasetStream(parsed, ExtractMetadata(parsed)), nil
}
