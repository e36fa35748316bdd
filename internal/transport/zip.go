// ============================================================================
// Fleetd Transport - Zip Packer/Unpacker
// ============================================================================
//
// Package: internal/transport
// File: zip.go
// Purpose: the zip packer/unpacker spec.md §1 scopes out as external.
//
// Built on archive/zip (stdlib) rather than a third-party archiver: none of
// the retrieval pack's example repos import a zip library, and archive/zip
// covers exactly the two operations spec.md needs (compress a directory,
// extract an archive) with no compression-format flexibility the domain
// requires. See DESIGN.md for the stdlib justification.
//
// ============================================================================

package transport

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unzip extracts archivePath into destDir, recreating the archive's
// directory structure. Used by the worker's prepare() to turn
// "<zip_dir>/<job_name>.zip" into "<job_dir>/<job_name>/...".
func Unzip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("transport: open zip %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return fmt.Errorf("transport: zip entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		if err := extractOne(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("transport: open zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("transport: create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("transport: extract %s: %w", target, err)
	}
	return nil
}

// ZipDir compresses the contents of srcDir into a new archive at
// archivePath, with entry names relative to srcDir. Used by
// pack_job_error to bundle "<worker>/<job_name>/errors" before pushing it
// to the master.
func ZipDir(srcDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("transport: create archive %s: %w", archivePath, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	defer w.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			_, err := w.Create(rel + "/")
			return err
		}

		entry, err := w.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
}
