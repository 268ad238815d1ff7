package jmix

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Builder assembles a JMIX package directory (manifest.json plus a
// payload/ directory of copied DICOM files) and records it in an Index,
// narrowed from jmix_builder.rs's JmixBuilderMiddleware right-side
// behavior: Harmony's Builder is the package-assembly half, kept separate
// from the middleware that decides WHEN to invoke it (spec §4.8's
// component boundary between the jmix_builder middleware and the jmix
// service/index).
type Builder struct {
	Root  string // storage root under which jmix-store/<id> packages live
	Index *Index
}

// NewBuilder constructs a Builder rooted at root, using idx for indexing.
func NewBuilder(root string, idx *Index) *Builder {
	return &Builder{Root: root, Index: idx}
}

// BuildRequest names the source files and descriptive metadata for one
// package build.
type BuildRequest struct {
	StudyUID   string
	SourceDir  string   // directory containing the DICOM instance files to copy
	Instances  []string // filenames within SourceDir, relative
	Manifest   map[string]any
}

// Build copies the named instance files into a fresh jmix-store/<id>/payload
// directory, writes manifest.json, indexes the result, and returns the
// PackageInfo record.
func (b *Builder) Build(req BuildRequest) (*PackageInfo, error) {
	id := uuid.NewString()
	pkgDir := filepath.Join(b.Root, "jmix-store", id)
	payloadDir := filepath.Join(pkgDir, "payload")
	if err := os.MkdirAll(payloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("jmix: creating package directory: %w", err)
	}

	for _, name := range req.Instances {
		if err := copyFile(filepath.Join(req.SourceDir, name), filepath.Join(payloadDir, name)); err != nil {
			return nil, fmt.Errorf("jmix: copying instance %q: %w", name, err)
		}
	}

	manifest := req.Manifest
	if manifest == nil {
		manifest = map[string]any{}
	}
	manifest["id"] = id
	manifest["study_uid"] = req.StudyUID
	manifest["instance_count"] = len(req.Instances)

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("jmix: encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "manifest.json"), manifestData, 0o644); err != nil {
		return nil, fmt.Errorf("jmix: writing manifest: %w", err)
	}

	pkg := PackageInfo{ID: id, StudyUID: req.StudyUID, Path: pkgDir, CreatedAt: time.Now()}
	if err := b.Index.IndexPackage(pkg); err != nil {
		return nil, fmt.Errorf("jmix: indexing package: %w", err)
	}
	return &pkg, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
