package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zlnvch/flashlist/models"
)

const (
	credentialsFileName = "credentials.json"
	snapshotDirName     = "outlines"
)

// DefaultHome is ~/.flashlist.
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".flashlist"), nil
}

func readJSON(path string, dst any) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// writeJSON replaces path atomically, creating its directory with 0700.
func writeJSON(path string, v any, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CredentialFile keeps the session token on disk, readable by the owner
// only.
type CredentialFile struct {
	Path string
}

func NewCredentialFile(home string) *CredentialFile {
	return &CredentialFile{Path: filepath.Join(home, credentialsFileName)}
}

func (f *CredentialFile) Load() (Credentials, bool, error) {
	var creds Credentials
	ok, err := readJSON(f.Path, &creds)
	return creds, ok, err
}

func (f *CredentialFile) Save(creds Credentials) error {
	return writeJSON(f.Path, creds, 0o600)
}

func (f *CredentialFile) Remove() error {
	return removeFile(f.Path)
}

// SnapshotFile is the locally stored outline of one account. It is
// replayed into that account when it is empty and used when the service
// cannot be reached.
type SnapshotFile struct {
	Path string
}

func NewSnapshotFile(home string, userId string) *SnapshotFile {
	return &SnapshotFile{Path: filepath.Join(home, snapshotDirName, filepath.Base(userId)+".json")}
}

// Load returns nil when there is no snapshot.
func (f *SnapshotFile) Load() ([]models.Item, error) {
	var items []models.Item
	ok, err := readJSON(f.Path, &items)
	if err != nil || !ok {
		return nil, err
	}
	return items, nil
}

func (f *SnapshotFile) Save(items []models.Item) error {
	return writeJSON(f.Path, items, 0o600)
}

func (f *SnapshotFile) Remove() error {
	return removeFile(f.Path)
}
