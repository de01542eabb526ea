package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/imamik/k3dops/internal/platform/aws"
)

// terraformStateFile is the local state file terraform keeps in the
// working directory.
const terraformStateFile = "terraform.tfstate"

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newS3Client creates the S3 backup client.
	newS3Client = func(ctx context.Context, region string) (objectStore, error) {
		return aws.NewS3Client(ctx, region)
	}

	// timestamp names a backup snapshot.
	timestamp = func() string {
		return time.Now().UTC().Format("20060102-150405")
	}
)

// objectStore is the S3 surface the backup and doctor handlers need.
type objectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Backup uploads a snapshot of the stored kubeconfig and the terraform state
// to the configured S3 bucket. Snapshots are keyed by cluster name and a UTC
// timestamp, so repeated backups never overwrite each other.
func Backup(ctx context.Context, configPath string) error {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Backup.Bucket == "" {
		return fmt.Errorf("no backup bucket configured, set backup.bucket in the config")
	}

	store, err := newS3Client(ctx, cfg.Provisioning.Region)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx, cfg.Backup.Bucket); err != nil {
		return err
	}

	creds, err := newCredStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	prefix := cfg.Backup.Prefix
	if prefix == "" {
		prefix = cfg.ClusterName
	}
	snapshot := timestamp()

	uploaded := 0
	if kubeconfig, err := creds.Load(cfg.ClusterName); err == nil {
		key := fmt.Sprintf("%s/%s/kubeconfig", prefix, snapshot)
		if err := store.Put(ctx, cfg.Backup.Bucket, key, kubeconfig); err != nil {
			return err
		}
		log.Printf("uploaded kubeconfig to s3://%s/%s", cfg.Backup.Bucket, key)
		uploaded++
	} else {
		log.Printf("no stored kubeconfig for %s, skipping", cfg.ClusterName)
	}

	statePath := filepath.Join(filepath.Dir(resolvedPath), terraformSubdir, terraformStateFile)
	if state, err := os.ReadFile(statePath); err == nil {
		key := fmt.Sprintf("%s/%s/%s", prefix, snapshot, terraformStateFile)
		if err := store.Put(ctx, cfg.Backup.Bucket, key, state); err != nil {
			return err
		}
		log.Printf("uploaded terraform state to s3://%s/%s", cfg.Backup.Bucket, key)
		uploaded++
	} else {
		log.Printf("no local terraform state at %s, skipping", statePath)
	}

	if uploaded == 0 {
		return fmt.Errorf("nothing to back up: no stored kubeconfig and no terraform state")
	}

	if keys, err := store.List(ctx, cfg.Backup.Bucket, prefix); err == nil {
		log.Printf("bucket s3://%s now holds %d objects under %s/", cfg.Backup.Bucket, len(keys), prefix)
	}
	return nil
}
