package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedFS(name string, seen *string) fsDetector {
	return func(path string) (string, error) {
		if seen != nil {
			*seen = path
		}
		return name, nil
	}
}

func TestCheckLocalAllowsLocalDisk(t *testing.T) {
	t.Parallel()
	assert.NoError(t, checkLocal(filepath.Join(t.TempDir(), "journal.db"), fixedFS("ext4", nil)))
}

func TestCheckLocalRejectsNetworkMount(t *testing.T) {
	t.Parallel()

	err := checkLocal(filepath.Join(t.TempDir(), "journal.db"), fixedFS("smbfs", nil))
	require.ErrorIs(t, err, ErrNetworkFilesystem)
	assert.Contains(t, err.Error(), "smbfs")
	assert.Contains(t, err.Error(), "journal.path")
}

func TestCheckLocalProbesNearestExistingParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var probed string
	require.NoError(t, checkLocal(filepath.Join(root, "data", "nested", "journal.db"), fixedFS("apfs", &probed)))
	assert.Equal(t, root, probed)
}

func TestCheckLocalUnsupportedPlatformPasses(t *testing.T) {
	t.Parallel()

	err := checkLocal(filepath.Join(t.TempDir(), "journal.db"), func(string) (string, error) {
		return "", errUnsupportedPlatform
	})
	assert.NoError(t, err)
}

func TestCheckLocalDetectorFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("statfs failed")
	err := checkLocal(filepath.Join(t.TempDir(), "journal.db"), func(string) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Error(t, checkLocal("", fixedFS("ext4", nil)))
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	for fs, want := range map[string]bool{
		"nfs":    true,
		"NFS4":   true,
		" smb2 ": true,
		"apfs":   false,
		"0x6969": false,
	} {
		assert.Equal(t, want, isNetworkFilesystem(fs), fs)
	}
}
