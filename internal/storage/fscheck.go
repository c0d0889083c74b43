package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNetworkFilesystem marks a journal path SQLite cannot lock reliably.
var ErrNetworkFilesystem = errors.New("network filesystem")

var errUnsupportedPlatform = errors.New("filesystem detection is unsupported on this platform")

// fsDetector names the filesystem holding an existing path.
type fsDetector func(path string) (string, error)

var networkFilesystems = []string{"9p", "afpfs", "cifs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}

// CheckLocal fails with ErrNetworkFilesystem when path, or its nearest
// existing ancestor, is on a network mount. Platforms without detection
// always pass.
func CheckLocal(path string) error {
	return checkLocal(path, detectFilesystemType)
}

func checkLocal(path string, detect fsDetector) error {
	if path == "" {
		return errors.New("journal path is empty")
	}
	probe, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve journal path %q: %w", path, err)
	}

	fsType, err := detect(probe)
	switch {
	case errors.Is(err, errUnsupportedPlatform):
		return nil
	case err != nil:
		return fmt.Errorf("detect filesystem for %q: %w", probe, err)
	case isNetworkFilesystem(fsType):
		return fmt.Errorf("journal path %q is on %s (%w); SQLite needs local disk for reliable locking, set journal.path to a local file",
			path, fsType, ErrNetworkFilesystem)
	}
	return nil
}

// existingAncestor returns the absolute form of path or of the closest
// parent that exists; the journal file and its directory may not exist yet.
func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		p = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	return slices.Contains(networkFilesystems, strings.ToLower(strings.TrimSpace(fsType)))
}
