// Package jmix implements the JMIX package index and builder spec §4.8
// describes: a content-addressed DICOM package format with a persistent
// lookup index. Grounded on original_source's
// src/models/middleware/types/jmix_index.rs (JmixIndex, backed there by
// redb) and jmix_builder.rs (package assembly); Harmony substitutes
// go.etcd.io/bbolt for redb — both are embedded, single-file, ACID
// key/value stores, and bbolt is the one the example pack actually carries
// a direct dependency on.
package jmix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketByID       = []byte("packages_by_id")
	bucketByStudyUID = []byte("packages_by_study_uid")
)

// PackageInfo is one JMIX package's index record (spec §3's
// JmixPackageInfo).
type PackageInfo struct {
	ID        string    `json:"id"`
	StudyUID  string     `json:"study_uid"`
	Path      string     `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Index is the persistent package-ID/study-UID lookup, backed by a single
// bbolt database file, replacing jmix_index.rs's two redb tables with two
// bbolt buckets of the same shape.
type Index struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt-backed index at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("jmix: opening index at %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketByID); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByStudyUID)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("jmix: initializing buckets: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database file.
func (i *Index) Close() error { return i.db.Close() }

// studyUIDKey builds the packages_by_study_uid composite key "<study_uid>:<id>":
// bbolt buckets are ordered byte-slice key spaces, so prefixing by study UID
// lets QueryByStudyUID walk a Cursor.Seek(prefix) range instead of
// maintaining a separate id-list value, the direct idiomatic translation of
// jmix_index.rs's own full-table filtered scan.
func studyUIDKey(studyUID, id string) []byte {
	return []byte(studyUID + ":" + id)
}

// IndexPackage records pkg in both buckets within a single write
// transaction, matching jmix_index.rs's index_package.
func (i *Index) IndexPackage(pkg PackageInfo) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		byID := tx.Bucket(bucketByID)
		byStudy := tx.Bucket(bucketByStudyUID)

		data, err := json.Marshal(pkg)
		if err != nil {
			return err
		}
		if err := byID.Put([]byte(pkg.ID), data); err != nil {
			return err
		}
		return byStudy.Put(studyUIDKey(pkg.StudyUID, pkg.ID), data)
	})
}

// GetByID returns the package with id, or (nil, nil) if not found.
func (i *Index) GetByID(id string) (*PackageInfo, error) {
	var pkg *PackageInfo
	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketByID).Get([]byte(id))
		if data == nil {
			return nil
		}
		var p PackageInfo
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		pkg = &p
		return nil
	})
	return pkg, err
}

// QueryByStudyUID walks the packages_by_study_uid bucket from studyUID's
// prefix, matching jmix_index.rs's query_by_study_uid full-scan-plus-filter
// via a bounded Cursor.Seek range instead.
func (i *Index) QueryByStudyUID(studyUID string) ([]PackageInfo, error) {
	var out []PackageInfo
	prefix := []byte(studyUID + ":")
	err := i.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketByStudyUID).Cursor()
		for k, data := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, data = c.Next() {
			var p PackageInfo
			if err := json.Unmarshal(data, &p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// RemovePackage deletes id from both buckets in a single write transaction,
// matching jmix_index.rs's remove_package.
func (i *Index) RemovePackage(id string) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		byID := tx.Bucket(bucketByID)
		data := byID.Get([]byte(id))
		if data == nil {
			return nil
		}
		var pkg PackageInfo
		if err := json.Unmarshal(data, &pkg); err != nil {
			return err
		}
		if err := byID.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketByStudyUID).Delete(studyUIDKey(pkg.StudyUID, id))
	})
}

// Exists reports whether id is currently indexed.
func (i *Index) Exists(id string) (bool, error) {
	pkg, err := i.GetByID(id)
	return pkg != nil, err
}
