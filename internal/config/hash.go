package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile sits next to the root config and pins every config file.
const ChecksumFile = ".checksums"

const checksumVersion = 1

// Checksums maps config file names, relative to the config directory and
// slash separated, to hex BLAKE3 digests.
type Checksums struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// DriftError lists every config file that no longer matches its lock.
type DriftError struct {
	Changed  []string
	Unlisted []string
}

func (e *DriftError) Error() string {
	var parts []string
	if len(e.Changed) > 0 {
		parts = append(parts, "changed since lock: "+strings.Join(e.Changed, ", "))
	}
	if len(e.Unlisted) > 0 {
		parts = append(parts, "not in "+ChecksumFile+": "+strings.Join(e.Unlisted, ", "))
	}
	return "config integrity: " + strings.Join(parts, "; ") + " (run 'gridctl config lock')"
}

// HashBytes is the hex BLAKE3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile streams path through BLAKE3.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteChecksums pins files into configDir/.checksums, replacing any
// previous lock.
func WriteChecksums(configDir string, files []string) (*Checksums, error) {
	sums := &Checksums{
		Version:     checksumVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      make(map[string]string, len(files)),
	}
	for _, path := range files {
		name, err := lockName(configDir, path)
		if err != nil {
			return nil, err
		}
		if sums.Hashes[name], err = HashFile(path); err != nil {
			return nil, err
		}
	}
	out, err := yaml.Marshal(sums)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ChecksumFile, err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ChecksumFile), out, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", ChecksumFile, err)
	}
	return sums, nil
}

// LoadChecksums reads configDir/.checksums. An unlocked directory yields
// nil, nil.
func LoadChecksums(configDir string) (*Checksums, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, ChecksumFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ChecksumFile, err)
	}
	var sums Checksums
	if err := yaml.Unmarshal(raw, &sums); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ChecksumFile, err)
	}
	if sums.Version != checksumVersion {
		return nil, fmt.Errorf("%s: unsupported version %d", ChecksumFile, sums.Version)
	}
	return &sums, nil
}

// VerifyChecksums checks files against the lock in configDir. Without a
// lock nothing is checked. Every drifted file is reported in one
// *DriftError.
func VerifyChecksums(configDir string, files []string) error {
	sums, err := LoadChecksums(configDir)
	if err != nil || sums == nil {
		return err
	}
	drift := &DriftError{}
	for _, path := range files {
		name, err := lockName(configDir, path)
		if err != nil {
			return err
		}
		want, listed := sums.Hashes[name]
		if !listed {
			drift.Unlisted = append(drift.Unlisted, name)
			continue
		}
		got, err := HashFile(path)
		if err != nil {
			return err
		}
		if got != want {
			drift.Changed = append(drift.Changed, name)
		}
	}
	if len(drift.Changed)+len(drift.Unlisted) > 0 {
		return drift
	}
	return nil
}

func lockName(dir, path string) (string, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", fmt.Errorf("%s is outside %s: %w", path, dir, err)
	}
	return filepath.ToSlash(rel), nil
}
