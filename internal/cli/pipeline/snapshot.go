package pipeline

import (
	"context"
	"fmt"

	"github.com/helioscope-ai/helioscope/internal/storage"
	"github.com/spf13/cobra"
)

// SnapshotCmd creates the snapshot command with upload, download, and
// delete subcommands.
func SnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage vector index snapshots in object storage",
		Long: `Uploads, downloads, and deletes vector index snapshots in
S3-compatible object storage. A snapshot is the index file plus its
metadata sidecar, stored under the snapshot name.`,
	}

	cmd.AddCommand(snapshotUploadCmd())
	cmd.AddCommand(snapshotDownloadCmd())
	cmd.AddCommand(snapshotDeleteCmd())

	return cmd
}

func newSnapshotStore(ctx context.Context, d *deps) (*storage.SnapshotStore, error) {
	if !d.cfg.HasS3() {
		return nil, fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID, and S3_SECRET_ACCESS_KEY are required for snapshots")
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        d.cfg.S3Endpoint,
		Region:          d.cfg.S3Region,
		AccessKeyID:     d.cfg.S3AccessKey,
		SecretAccessKey: d.cfg.S3SecretKey,
		Bucket:          d.cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return storage.NewSnapshotStore(client, ""), nil
}

func snapshotUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the local index as a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotUpload(cmd.Context(), name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "latest", "Snapshot name")

	return cmd
}

func runSnapshotUpload(ctx context.Context, name string) error {
	d, err := setup(ctx, depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	store, err := newSnapshotStore(ctx, d)
	if err != nil {
		return err
	}

	if err := store.Upload(ctx, name, d.cfg.IndexPath, d.cfg.IndexMetadataPath); err != nil {
		return fmt.Errorf("snapshot upload failed: %w", err)
	}

	fmt.Printf("Uploaded snapshot %q from %s\n", name, d.cfg.IndexPath)
	return nil
}

func snapshotDownloadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a snapshot to the local index paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotDownload(cmd.Context(), name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "latest", "Snapshot name")

	return cmd
}

func runSnapshotDownload(ctx context.Context, name string) error {
	d, err := setup(ctx, depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	store, err := newSnapshotStore(ctx, d)
	if err != nil {
		return err
	}

	exists, err := store.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check snapshot: %w", err)
	}
	if !exists {
		return fmt.Errorf("snapshot %q not found", name)
	}

	if err := store.Download(ctx, name, d.cfg.IndexPath, d.cfg.IndexMetadataPath); err != nil {
		return fmt.Errorf("snapshot download failed: %w", err)
	}

	fmt.Printf("Downloaded snapshot %q to %s\n", name, d.cfg.IndexPath)
	return nil
}

func snapshotDeleteCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotDelete(cmd.Context(), name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Snapshot name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runSnapshotDelete(ctx context.Context, name string) error {
	d, err := setup(ctx, depsOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	store, err := newSnapshotStore(ctx, d)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, name); err != nil {
		return fmt.Errorf("snapshot delete failed: %w", err)
	}

	fmt.Printf("Deleted snapshot %q\n", name)
	return nil
}
