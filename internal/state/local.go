package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// LocalStore keeps snapshots on the local filesystem.
type LocalStore struct{}

// NewLocalStore creates a local snapshot store.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Prepare creates the working and auth directories of rec.
func (s *LocalStore) Prepare(rec *cluster.Record) error {
	if rec.Dir == "" {
		return fmt.Errorf("%w: %s has no cluster directory", cluster.ErrInvalidRecord, rec.Name)
	}
	if rec.AuthDir == "" {
		rec.AuthDir = naming.AuthDir(rec.Dir)
	}
	if err := os.MkdirAll(rec.AuthDir, dirPerm); err != nil {
		return fmt.Errorf("create cluster directory %s: %w", rec.Dir, err)
	}
	return nil
}

// Save atomically writes the snapshot of rec into its working directory.
func (s *LocalStore) Save(_ context.Context, rec *cluster.Record) error {
	if err := s.save(rec); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCheckpointWriteFailed, rec.Name, err)
	}
	return nil
}

func (s *LocalStore) save(rec *cluster.Record) error {
	if rec.Dir == "" {
		return errors.New("record has no cluster directory")
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(rec.Dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(rec.Dir, ".cluster_data-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, naming.Snapshot(rec.Dir))
}

// Load reads the snapshot in dir. The record's directory fields are pointed
// at dir, so a snapshot moved or extracted elsewhere still works.
func (s *LocalStore) Load(dir string) (*cluster.Record, error) {
	data, err := os.ReadFile(naming.Snapshot(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, dir)
		}
		return nil, fmt.Errorf("read snapshot in %s: %w", dir, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	rec.Dir = dir
	rec.AuthDir = naming.AuthDir(dir)
	return rec, nil
}

// Discover loads every snapshot below root, ordered by path. Snapshots that
// fail to load are reported in a LoadErrors next to the loaded records.
func (s *LocalStore) Discover(root string) ([]*cluster.Record, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".terraform" {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == naming.SnapshotFile {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover snapshots in %s: %w", root, err)
	}
	sort.Strings(dirs)

	records := make([]*cluster.Record, 0, len(dirs))
	var errs []error
	for _, dir := range dirs {
		rec, err := s.Load(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, loadErrors(errs)
}

// Remove deletes the working directory of rec.
func (s *LocalStore) Remove(rec *cluster.Record) error {
	dir := filepath.Clean(rec.Dir)
	if rec.Dir == "" || dir == "/" || dir == "." {
		return fmt.Errorf("%w: refusing to remove %q", cluster.ErrInvalidRecord, rec.Dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove cluster directory %s: %w", dir, err)
	}
	return nil
}
