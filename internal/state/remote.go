package state

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

// ObjectStore is the subset of an S3-compatible client used for archives.
// Both the AWS S3 and the MinIO clients satisfy it.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// RemoteStore uploads and downloads zipped cluster directories.
type RemoteStore struct {
	objects ObjectStore
	prefix  string
}

// NewRemoteStore creates a remote store writing keys below prefix.
func NewRemoteStore(objects ObjectStore, prefix string) *RemoteStore {
	return &RemoteStore{objects: objects, prefix: strings.Trim(prefix, "/")}
}

// KeyFor returns the object key rec is backed up under, assigning one
// if the record has none yet.
func (s *RemoteStore) KeyFor(rec *cluster.Record) string {
	if rec.BackupKey == "" {
		rec.BackupKey = naming.BackupKey(s.prefix, rec.Name, rec.ShortID)
	}
	return rec.BackupKey
}

// Backup zips the working directory of rec and uploads it. Records without
// a bucket are skipped.
func (s *RemoteStore) Backup(ctx context.Context, rec *cluster.Record) error {
	if rec.Bucket == "" {
		return nil
	}
	key := s.KeyFor(rec)

	tmp, err := os.CreateTemp("", "cluster-archive-*"+naming.ArchiveExt)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := Zip(rec.Dir, tmp); err != nil {
		return err
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("archive %s: %w", rec.Dir, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("archive %s: %w", rec.Dir, err)
	}
	if err := s.objects.PutObject(ctx, rec.Bucket, key, tmp, size); err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", rec.Bucket, key, err)
	}
	return nil
}

// DeleteBackup removes the archive of rec, if it has one.
func (s *RemoteStore) DeleteBackup(ctx context.Context, rec *cluster.Record) error {
	if rec.Bucket == "" || rec.BackupKey == "" {
		return nil
	}
	if err := s.objects.DeleteObject(ctx, rec.Bucket, rec.BackupKey); err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", rec.Bucket, rec.BackupKey, err)
	}
	return nil
}

// Restore downloads the archive at key and extracts it below dataDir.
// The returned record points at the extracted directory and remembers
// where it came from, so a later destroy can delete the archive.
func (s *RemoteStore) Restore(ctx context.Context, bucket, key, dataDir string) (*cluster.Record, error) {
	body, err := s.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp("", "cluster-archive-*"+naming.ArchiveExt)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, body)
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	dir := filepath.Join(dataDir, strings.TrimSuffix(path.Base(key), naming.ArchiveExt))
	if err := Unzip(tmp, size, dir); err != nil {
		return nil, fmt.Errorf("restore s3://%s/%s: %w", bucket, key, err)
	}

	rec, err := NewLocalStore().Load(dir)
	if err != nil {
		return nil, err
	}
	rec.Bucket = bucket
	rec.BackupKey = key
	return rec, nil
}

// RestoreAll restores every archive below prefix in bucket. Archives that
// fail to restore are reported in a LoadErrors and do not stop the others.
func (s *RemoteStore) RestoreAll(ctx context.Context, bucket, prefix, dataDir string) ([]*cluster.Record, error) {
	return s.RestoreMatching(ctx, bucket, prefix, "", dataDir)
}

// RestoreMatching is RestoreAll limited to archives whose object name
// contains query.
func (s *RemoteStore) RestoreMatching(ctx context.Context, bucket, prefix, query, dataDir string) ([]*cluster.Record, error) {
	keys, err := s.objects.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
	}

	var (
		records []*cluster.Record
		errs    []error
	)
	for _, key := range keys {
		if !naming.IsBackupKey(key) || !strings.Contains(path.Base(key), query) {
			continue
		}
		rec, err := s.Restore(ctx, bucket, key, dataDir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, loadErrors(errs)
}
