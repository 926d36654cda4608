// Package materialize turns a downloaded template archive into files in the
// working directory.
package materialize

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/gzip"

	"create-uix-app/internal/errs"
	"create-uix-app/internal/logging"
)

// Extract decompresses and untars r into fs entry by entry. Nothing is
// buffered beyond the current entry.
func Extract(ctx context.Context, fs billy.Filesystem, r io.Reader) error {
	log := logging.FromContext(ctx)

	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tr := tar.NewReader(gzReader)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		// Insecure names are rejected by entryPath below.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		name, err := entryPath(hdr.Name)
		if err != nil {
			return errs.FS("extract", hdr.Name, err)
		}
		if name == "" {
			continue
		}
		if err := checkParents(fs, name); err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(name, dirMode(hdr)); err != nil {
				return errs.FS("mkdir", name, err)
			}
		case tar.TypeReg:
			if err := writeFile(fs, name, tr, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := symlink(fs, name, hdr.Linkname); err != nil {
				return err
			}
		default:
			log.Debug("Skipping archive entry.", "name", hdr.Name, "type", string(hdr.Typeflag))
			continue
		}
		count++
	}

	log.Debug("Archive extracted.", "entries", count)
	return nil
}

var errEscape = errors.New("entry escapes the target directory")

// entryPath cleans an archive entry name and refuses anything that would land
// outside the root.
func entryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(name) {
		return "", errEscape
	}
	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errEscape
	}
	return cleaned, nil
}

// checkParents refuses entries whose parent directories include a symlink.
// Links are only checked lexically when created, so a chain of them can still
// point outside the root once resolved on disk.
func checkParents(fs billy.Filesystem, name string) error {
	dir := path.Dir(name)
	if dir == "." {
		return nil
	}
	parts := strings.Split(dir, "/")
	for i := range parts {
		p := strings.Join(parts[:i+1], "/")
		info, err := fs.Lstat(p)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return errs.FS("lstat", p, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return errs.FS("extract", name, errEscape)
		}
	}
	return nil
}

// removeSymlink drops an existing symlink at name so that writing a regular
// file there does not follow it.
func removeSymlink(fs billy.Filesystem, name string) error {
	info, err := fs.Lstat(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.FS("lstat", name, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if err := fs.Remove(name); err != nil {
		return errs.FS("remove", name, err)
	}
	return nil
}

func dirMode(hdr *tar.Header) os.FileMode {
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0755
	}
	return mode
}

func writeFile(fs billy.Filesystem, name string, r io.Reader, hdr *tar.Header) error {
	if dir := path.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errs.FS("mkdir", dir, err)
		}
	}

	if err := removeSymlink(fs, name); err != nil {
		return err
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}

	f, err := fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errs.FS("create", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errs.FS("write", name, err)
	}
	if err := f.Close(); err != nil {
		return errs.FS("close", name, err)
	}
	return nil
}

func symlink(fs billy.Filesystem, name, target string) error {
	resolved := path.Join(path.Dir(name), target)
	if path.IsAbs(target) || resolved == ".." || strings.HasPrefix(resolved, "../") {
		return errs.FS("symlink", name, errEscape)
	}
	if dir := path.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errs.FS("mkdir", dir, err)
		}
	}
	if err := fs.Symlink(target, name); err != nil {
		return errs.FS("symlink", name, err)
	}
	return nil
}
