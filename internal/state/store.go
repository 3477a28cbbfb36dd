package state

import (
	"context"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// Store combines the local snapshot store with an optional remote archive.
// It is the checkpointer handed to lifecycles.
type Store struct {
	Local  *LocalStore
	Remote *RemoteStore
}

// NewStore creates a store. remote may be nil when no bucket is configured.
func NewStore(remote *RemoteStore) *Store {
	return &Store{Local: NewLocalStore(), Remote: remote}
}

// Prepare creates the working directory of rec and assigns its archive key
// when the record is backed up.
func (s *Store) Prepare(rec *cluster.Record) error {
	if err := s.Local.Prepare(rec); err != nil {
		return err
	}
	if s.Remote != nil && rec.Bucket != "" {
		s.Remote.KeyFor(rec)
	}
	return nil
}

// Save checkpoints rec locally.
func (s *Store) Save(ctx context.Context, rec *cluster.Record) error {
	return s.Local.Save(ctx, rec)
}

// Backup uploads the working directory of rec when remote storage is configured.
func (s *Store) Backup(ctx context.Context, rec *cluster.Record) error {
	if s.Remote == nil || rec.Bucket == "" {
		return nil
	}
	return s.Remote.Backup(ctx, rec)
}

// Forget removes every trace of a destroyed cluster: its archive and its
// working directory.
func (s *Store) Forget(ctx context.Context, rec *cluster.Record) error {
	if s.Remote != nil {
		if err := s.Remote.DeleteBackup(ctx, rec); err != nil {
			return err
		}
	}
	return s.Local.Remove(rec)
}
