package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a supported archive format.
type Format int

const (
	// FormatUnknown is returned for anything that is not a supported archive.
	FormatUnknown Format = iota
	// FormatZip is a PKZIP archive.
	FormatZip
	// FormatTarGz is a gzip-compressed tarball.
	FormatTarGz
)

const (
	// defaultDirMode is used for directories created on demand.
	defaultDirMode os.FileMode = 0o755
	// defaultFileMode is used for entries that carry no permission bits.
	defaultFileMode os.FileMode = 0o644
	// magicLength is the number of leading bytes inspected by Detect.
	magicLength = 4
)

var (
	// ErrUnsupportedFormat is returned for files that are neither zip nor tar.gz.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrIllegalPath is returned for entries escaping the destination directory.
	ErrIllegalPath = errors.New("illegal file path in archive")

	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// Detect inspects the leading bytes of the file to determine its format.
func Detect(path string) (Format, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return FormatUnknown, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	header := make([]byte, magicLength)

	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("read archive header: %w", err)
	}

	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip, nil
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz, nil
	default:
		return FormatUnknown, nil
	}
}

// Extract unpacks the archive at archivePath into destDir, creating destDir if needed.
func Extract(ctx context.Context, archivePath, destDir string) error {
	format, err := Detect(archivePath)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(destDir, defaultDirMode); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	switch format {
	case FormatZip:
		return extractZip(ctx, archivePath, destDir)
	case FormatTarGz:
		return extractTarGz(ctx, archivePath, destDir)
	default:
		return fmt.Errorf("%s: %w", archivePath, ErrUnsupportedFormat)
	}
}

// extractZip unpacks every entry of a zip archive.
func extractZip(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(filepath.Clean(archivePath))
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = reader.Close()

		return fmt.Errorf("%s: %w", archivePath, ErrIllegalPath)
	}

	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = extractZipEntry(entry, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractZipEntry writes a single zip entry below destDir.
func extractZipEntry(entry *zip.File, destDir string) error {
	target, err := safeJoin(destDir, entry.Name)
	if err != nil {
		return err
	}

	mode := entry.Mode()

	switch {
	case mode.IsDir():
		return mkdir(target, mode)
	case mode&os.ModeSymlink != 0:
		linkTarget, err := readZipEntry(entry)
		if err != nil {
			return err
		}

		return symlink(string(linkTarget), target)
	default:
		source, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", entry.Name, err)
		}

		defer func() {
			_ = source.Close()
		}()

		return writeFile(target, source, mode)
	}
}

// readZipEntry returns the whole content of a small entry such as a symlink target.
func readZipEntry(entry *zip.File) ([]byte, error) {
	source, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Name, err)
	}

	defer func() {
		_ = source.Close()
	}()

	content, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Name, err)
	}

	return content, nil
}

// extractTarGz unpacks every entry of a gzip-compressed tarball.
func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	archiveFile, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = archiveFile.Close()
	}()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		mode := header.FileInfo().Mode()

		switch header.Typeflag {
		case tar.TypeDir:
			err = mkdir(target, mode)
		case tar.TypeReg:
			err = writeFile(target, tarReader, mode)
		case tar.TypeSymlink:
			err = symlink(header.Linkname, target)
		default:
			// Devices, fifos and hard links are not part of release archives.
			continue
		}

		if err != nil {
			return err
		}
	}
}

// safeJoin resolves name below destDir and rejects paths escaping it,
// either lexically or through a symlink extracted earlier.
func safeJoin(destDir, name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if !filepath.IsLocal(filepath.FromSlash(strings.TrimSuffix(name, "/"))) {
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	}

	destDir = filepath.Clean(destDir)

	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target == destDir {
		return target, nil
	}

	if !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	}

	if err := checkParents(destDir, target); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	return target, nil
}

// checkParents fails when a directory between destDir and target is a symlink.
// Components that do not exist yet are created as plain directories later.
func checkParents(destDir, target string) error {
	rel, err := filepath.Rel(destDir, filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", target, err)
	}

	if rel == "." {
		return nil
	}

	current := destDir

	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("stat %s: %w", current, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return ErrIllegalPath
		}
	}

	return nil
}

func mkdir(target string, mode os.FileMode) error {
	perm := mode.Perm() | 0o700
	if mode.Perm() == 0 {
		perm = defaultDirMode
	}

	if err := os.MkdirAll(target, perm); err != nil {
		return fmt.Errorf("create directory %s: %w", target, err)
	}

	return nil
}

func symlink(linkTarget, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", target, err)
	}

	if err := os.Symlink(linkTarget, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}

	return nil
}

func writeFile(target string, source io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = defaultFileMode
	}

	// Replace a symlink left by an earlier entry instead of writing through it.
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err = os.Remove(target); err != nil {
			return fmt.Errorf("replace %s: %w", target, err)
		}
	}

	outFile, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err = io.Copy(outFile, source); err != nil {
		_ = outFile.Close()

		return fmt.Errorf("write file %s: %w", target, err)
	}

	if err = outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}

	// OpenFile is subject to umask and leaves existing files' modes untouched.
	if err = os.Chmod(target, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}

	return nil
}
