package dimse

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
)

// DimseCommand is the DIMSE command a DimseRequest carries, translated
// from the association's command stream by the (currently stubbed, see
// scp.go) CommandDecoder.
type DimseCommand int

const (
	CommandEcho DimseCommand = iota
	CommandFind
	CommandMove
	CommandStore
)

func (c DimseCommand) String() string {
	switch c {
	case CommandEcho:
		return "ECHO"
	case CommandFind:
		return "FIND"
	case CommandMove:
		return "MOVE"
	case CommandStore:
		return "STORE"
	default:
		return "UNKNOWN"
	}
}

// QueryLevel is the DICOM query/retrieve level (PATIENT|STUDY|SERIES|IMAGE
// root), grounded on crates/dimse/src/types.rs's QueryLevel enum.
type QueryLevel int

const (
	LevelPatient QueryLevel = iota
	LevelStudy
	LevelSeries
	LevelImage
)

func (l QueryLevel) String() string {
	switch l {
	case LevelPatient:
		return "PATIENT"
	case LevelStudy:
		return "STUDY"
	case LevelSeries:
		return "SERIES"
	case LevelImage:
		return "IMAGE"
	default:
		return "UNKNOWN"
	}
}

// ParseQueryLevel accepts any case of patient/study/series/image (and the
// DICOM "IMAGE"/"INSTANCE" synonym), mirroring types.rs's parser.
func ParseQueryLevel(s string) (QueryLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PATIENT":
		return LevelPatient, nil
	case "STUDY":
		return LevelStudy, nil
	case "SERIES":
		return LevelSeries, nil
	case "IMAGE", "INSTANCE":
		return LevelImage, nil
	default:
		return 0, fmt.Errorf("dimse: unknown query level %q", s)
	}
}

// MovePriority is the C-MOVE/C-STORE priority requested by the SCU.
type MovePriority int

const (
	PriorityMedium MovePriority = iota
	PriorityLow
	PriorityHigh
)

// DatasetMetadata carries the identifying tags every DatasetStream variant
// exposes regardless of how its bytes are held, so a QueryProvider can
// report results without decoding pixel data.
type DatasetMetadata struct {
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	SOPClassUID       string
	TransferSyntaxUID string
	// Tags holds any additional loosely-typed attribute the caller wants
	// to carry alongside the identifying UIDs above.
	Tags map[string]string
}

type datasetKind int

const (
	datasetMemory datasetKind = iota
	datasetFile
	datasetObject
)

// DatasetStream is a dataset wherever it currently lives: in memory, on
// disk, or already parsed. Grounded on spec.md §3's "DatasetStream:
// variant {InMemory(bytes, meta), File(path, meta, delete-on-drop flag),
// Object(parsed, meta)}". Go has no destructor equivalent to Rust's
// Drop, so the delete-on-drop contract is realized as an explicit Close
// plus a runtime.SetFinalizer fallback (spec.md §9's "route deletion
// through an explicit close() plus a finalizer fallback").
type DatasetStream struct {
	kind         datasetKind
	Meta         DatasetMetadata
	data         []byte
	path         string
	deleteOnDrop bool
	object       any

	mu     sync.Mutex
	closed bool
}

// NewMemoryDatasetStream wraps an in-memory dataset.
func NewMemoryDatasetStream(data []byte, meta DatasetMetadata) *DatasetStream {
	return &DatasetStream{kind: datasetMemory, data: data, Meta: meta}
}

// NewFileDatasetStream wraps a dataset on disk at path. When
// deleteOnDrop is true, Close (or, failing that, garbage collection)
// removes the file.
func NewFileDatasetStream(path string, meta DatasetMetadata, deleteOnDrop bool) *DatasetStream {
	ds := &DatasetStream{kind: datasetFile, path: path, Meta: meta, deleteOnDrop: deleteOnDrop}
	if deleteOnDrop {
		runtime.SetFinalizer(ds, func(d *DatasetStream) { _ = d.Close() })
	}
	return ds
}

// NewObjectDatasetStream wraps an already-parsed dataset (e.g. the
// internal/dicomcodec boundary type). object is left untyped here so this
// package does not need to import the DICOM parser.
func NewObjectDatasetStream(object any, meta DatasetMetadata) *DatasetStream {
	return &DatasetStream{kind: datasetObject, object: object, Meta: meta}
}

// IsFile reports whether this stream is backed by an on-disk file.
func (d *DatasetStream) IsFile() bool { return d.kind == datasetFile }

// Path returns the backing file path; empty unless IsFile().
func (d *DatasetStream) Path() string { return d.path }

// Bytes returns the in-memory payload; empty unless this is a Memory
// variant.
func (d *DatasetStream) Bytes() []byte { return d.data }

// Object returns the parsed dataset; nil unless this is an Object
// variant.
func (d *DatasetStream) Object() any { return d.object }

// Close deletes the backing file when this stream was constructed with
// deleteOnDrop=true. Safe to call more than once and safe to call on
// non-file variants (no-op). spec.md invariant 5: "A file-backed
// DatasetStream with delete-on-drop must be cleaned up even on error
// paths" — callers MUST defer Close immediately after obtaining a
// DatasetStream, not only on the success path.
func (d *DatasetStream) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.kind != datasetFile || !d.deleteOnDrop {
		d.closed = true
		return nil
	}
	d.closed = true
	runtime.SetFinalizer(d, nil)
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dimse: removing dataset file %s: %w", d.path, err)
	}
	return nil
}

// FindQuery is a C-FIND request: a query level, tag→value parameters, and
// an optional cap on returned matches (0 = unbounded).
type FindQuery struct {
	Level      QueryLevel
	Params     map[string]string
	MaxResults int
}

// NewFindQuery builds a FindQuery at the given level with no parameters
// or result cap set; chain With* to configure it.
func NewFindQuery(level QueryLevel) FindQuery {
	return FindQuery{Level: level, Params: map[string]string{}}
}

// WithParam sets one query parameter and returns the query for chaining.
func (q FindQuery) WithParam(tag, value string) FindQuery {
	if q.Params == nil {
		q.Params = map[string]string{}
	}
	q.Params[tag] = value
	return q
}

// WithMaxResults caps the number of matches returned.
func (q FindQuery) WithMaxResults(n int) FindQuery {
	q.MaxResults = n
	return q
}

// MoveQuery is a C-MOVE request: a FindQuery plus the destination AE
// title and requested priority.
type MoveQuery struct {
	FindQuery
	Destination string
	Priority    MovePriority
}

// NewMoveQuery builds a MoveQuery at the given level, targeting
// destination.
func NewMoveQuery(level QueryLevel, destination string) MoveQuery {
	return MoveQuery{FindQuery: NewFindQuery(level), Destination: destination, Priority: PriorityMedium}
}

// WithPriority sets the move priority and returns the query for
// chaining.
func (q MoveQuery) WithPriority(p MovePriority) MoveQuery {
	q.Priority = p
	return q
}

// DimseStatus is a DICOM status code (PS3.7 Annex C). The package defines
// only the handful the SCP dispatch path itself produces; the full
// bidirectional HTTP<->DIMSE table lives in internal/dimseadapter/status.go
// (spec §4.7), which imports these constants.
type DimseStatus uint16

const (
	StatusSuccess                DimseStatus = 0x0000
	StatusPending                DimseStatus = 0xFF00
	StatusProcessingFailure      DimseStatus = 0x0110
	StatusUnrecognizedOperation  DimseStatus = 0x0112
	StatusNoSuchObjectInstance   DimseStatus = 0xA801
	StatusCannotUnderstand       DimseStatus = 0xC000
	StatusOutOfResources         DimseStatus = 0xA700
)

// MoveCounters reports a C-MOVE operation's sub-operation tally, carried
// on the single final response spec.md §4.6.2 describes.
type MoveCounters struct {
	Remaining int
	Completed int
	Failed    int
	Warning   int
}
