package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

const (
	snapshotIndexKey = "index.bin"
	snapshotMetaKey  = "metadata.jsonl"
)

// SnapshotStore uploads and restores vector index snapshots through
// S3-compatible storage. Snapshots are stored as two objects under
// <prefix>/<name>/: the binary index file and its metadata sidecar.
type SnapshotStore struct {
	client *S3Client
	prefix string
}

// NewSnapshotStore creates a SnapshotStore. An empty prefix defaults to
// "snapshots".
func NewSnapshotStore(client *S3Client, prefix string) *SnapshotStore {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &SnapshotStore{client: client, prefix: prefix}
}

// Upload pushes a local index snapshot (index file plus metadata sidecar)
// under the given snapshot name.
func (s *SnapshotStore) Upload(ctx context.Context, name, indexPath, metaPath string) error {
	if err := s.client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	if err := s.uploadFile(ctx, s.objectKey(name, snapshotIndexKey), indexPath); err != nil {
		return fmt.Errorf("upload index file: %w", err)
	}
	if err := s.uploadFile(ctx, s.objectKey(name, snapshotMetaKey), metaPath); err != nil {
		return fmt.Errorf("upload metadata file: %w", err)
	}
	return nil
}

// Download restores a named snapshot to the given local paths, overwriting
// any existing files.
func (s *SnapshotStore) Download(ctx context.Context, name, indexPath, metaPath string) error {
	if err := s.downloadFile(ctx, s.objectKey(name, snapshotIndexKey), indexPath); err != nil {
		return fmt.Errorf("download index file: %w", err)
	}
	if err := s.downloadFile(ctx, s.objectKey(name, snapshotMetaKey), metaPath); err != nil {
		return fmt.Errorf("download metadata file: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot with the given name is present.
func (s *SnapshotStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, s.objectKey(name, snapshotIndexKey))
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Delete removes both objects of a named snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	if err := s.client.DeleteObject(ctx, s.objectKey(name, snapshotIndexKey)); err != nil {
		return err
	}
	return s.client.DeleteObject(ctx, s.objectKey(name, snapshotMetaKey))
}

func (s *SnapshotStore) objectKey(name, file string) string {
	return path.Join(s.prefix, name, file)
}

func (s *SnapshotStore) uploadFile(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return s.client.PutObject(ctx, key, f, "application/octet-stream")
}

func (s *SnapshotStore) downloadFile(ctx context.Context, key, localPath string) error {
	body, err := s.client.GetObject(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	tmp := localPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, localPath)
}
