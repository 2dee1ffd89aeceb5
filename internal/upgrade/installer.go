package upgrade

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// Local file header or, for an empty archive, end of central directory.
	zipMagic  = []byte("PK")
	gzipMagic = []byte{0x1f, 0x8b}
)

// Installer replaces the contents of an install directory with an archive.
// There is no backup: the directory is emptied once the archive verifies, so
// a failed extraction can leave it incomplete.
type Installer struct {
	destDir string
}

// NewInstaller creates a new Installer for destDir.
func NewInstaller(destDir string) *Installer {
	return &Installer{destDir: destDir}
}

// Install verifies archivePath, deletes the install directory and extracts
// the archive into it. Zip and tar.gz archives are recognized by content.
func (i *Installer) Install(archivePath string) error {
	format, err := detectFormat(archivePath)
	if err != nil {
		return err
	}

	if err := i.Verify(archivePath, format); err != nil {
		return err
	}

	if err := os.RemoveAll(i.destDir); err != nil {
		return NewError(ExitInstallError, "Failed to remove install directory", err)
	}
	if err := os.MkdirAll(i.destDir, 0755); err != nil {
		return NewError(ExitInstallError, "Failed to create install directory", err)
	}

	switch format {
	case formatZip:
		return i.extractZip(archivePath)
	default:
		return i.extractTarGz(archivePath)
	}
}

type archiveFormat int

const (
	formatZip archiveFormat = iota
	formatTarGz
)

func detectFormat(archivePath string) (archiveFormat, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, NewError(ExitInstallError, "Failed to open archive", err)
	}
	defer f.Close()

	header := make([]byte, 4)
	n, _ := io.ReadFull(f, header)
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic):
		return formatZip, nil
	case bytes.HasPrefix(header, gzipMagic):
		return formatTarGz, nil
	default:
		return 0, NewError(ExitInstallError, "Unsupported archive format", nil)
	}
}

// Verify checks that the archive can be read end to end and that no entry
// escapes the install directory.
func (i *Installer) Verify(archivePath string, format archiveFormat) error {
	if format == formatZip {
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			return NewError(ExitInstallError, "Failed to open zip", err)
		}
		defer r.Close()

		if len(r.File) == 0 {
			return NewError(ExitInstallError, "Archive is empty", nil)
		}
		for _, f := range r.File {
			if _, err := i.safePath(f.Name); err != nil {
				return err
			}
		}
		return nil
	}

	entries := 0
	err := walkTarGz(archivePath, func(header *tar.Header, r io.Reader) error {
		if _, err := i.safePath(header.Name); err != nil {
			return err
		}
		entries++
		_, err := io.Copy(io.Discard, r)
		return err
	})
	if err != nil {
		return err
	}
	if entries == 0 {
		return NewError(ExitInstallError, "Archive is empty", nil)
	}
	return nil
}

// safePath joins name onto the install directory, rejecting entries that
// would land outside it.
func (i *Installer) safePath(name string) (string, error) {
	root := filepath.Clean(i.destDir)
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", NewError(ExitInstallError, fmt.Sprintf("Archive entry %q escapes install directory", name), nil)
	}
	return target, nil
}

// extractZip extracts a zip archive.
func (i *Installer) extractZip(archivePath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return NewError(ExitInstallError, "Failed to open zip", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := i.safePath(f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return NewError(ExitInstallError, "Failed to create directory", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return NewError(ExitInstallError, "Failed to open file in zip", err)
		}
		err = extractFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

// extractTarGz extracts a tar.gz archive.
func (i *Installer) extractTarGz(archivePath string) error {
	return walkTarGz(archivePath, func(header *tar.Header, r io.Reader) error {
		target, err := i.safePath(header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return NewError(ExitInstallError, "Failed to create directory", err)
			}
		case tar.TypeReg:
			return extractFile(r, target, os.FileMode(header.Mode))
		}
		// Skip links and other non-regular files
		return nil
	})
}

func walkTarGz(archivePath string, fn func(header *tar.Header, r io.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return NewError(ExitInstallError, "Failed to open archive", err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return NewError(ExitInstallError, "Failed to read gzip", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewError(ExitInstallError, "Failed to read tar", err)
		}
		if err := fn(header, tr); err != nil {
			if _, ok := err.(*UpgradeError); ok {
				return err
			}
			return NewError(ExitInstallError, "Failed to read tar entry", err)
		}
	}
}

// extractFile writes a file to disk.
func extractFile(src io.Reader, destPath string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return NewError(ExitInstallError, "Failed to create directory", err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0755
	}

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return NewError(ExitInstallError, "Failed to create file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return NewError(ExitInstallError, "Failed to write file", err)
	}

	return nil
}
