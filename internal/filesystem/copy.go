package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// dirMode is used for parent directories created above the destination.
const dirMode os.FileMode = 0o755

var (
	// ErrDestinationExists is returned when the copy target is already present.
	ErrDestinationExists = errors.New("destination already exists")
	// errNotDirectory is returned when the copy source is not a directory.
	errNotDirectory = errors.New("source is not a directory")
)

// Exists reports whether something (file, directory or dangling symlink) is at path.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// CopyTree recursively copies the directory src to dst, preserving permission
// bits and symlinks. dst must not exist; its parents are created as needed.
// A failure part-way leaves whatever was already copied in place.
func CopyTree(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", src, errNotDirectory)
	}

	exists, err := Exists(dst)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	}

	if err = os.MkdirAll(filepath.Dir(dst), dirMode); err != nil {
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}

	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		return copyEntry(path, filepath.Join(dst, rel), entry)
	})
}

// copyEntry copies a single walked entry to target.
func copyEntry(path, target string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	switch mode := info.Mode(); {
	case mode.IsDir():
		if err = os.Mkdir(target, mode.Perm()|0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", target, err)
		}

		// Mkdir is subject to umask.
		return os.Chmod(target, mode.Perm()|0o700)
	case mode&os.ModeSymlink != 0:
		link, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("read symlink %s: %w", path, err)
		}

		if err = os.Symlink(link, target); err != nil {
			return fmt.Errorf("create symlink %s: %w", target, err)
		}

		return nil
	case mode.IsRegular():
		return copyFile(path, target, mode.Perm())
	default:
		// Sockets, devices and pipes have no place in an installation tree.
		return nil
	}
}

// copyFile copies the content of a regular file and applies perm to the copy.
func copyFile(src, dst string, perm os.FileMode) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = source.Close()
	}()

	target, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()

		return fmt.Errorf("copy %s: %w", src, err)
	}

	if err = target.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	return os.Chmod(dst, perm)
}
