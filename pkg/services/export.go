package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
)

// ObjectStore writes one object.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// S3ObjectStore writes objects to Amazon S3.
type S3ObjectStore struct {
	client *s3.Client
}

// NewS3ObjectStore loads AWS credentials from the default chain, optionally
// pinned to a shared-config profile and region.
func NewS3ObjectStore(ctx context.Context, profile, region string) (*S3ObjectStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3ObjectStore{client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3ObjectStore) Put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading to s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// SnapshotExporter writes the flat four-collection snapshot of a finished
// collection to object storage, one document per process.
type SnapshotExporter interface {
	Enabled() bool
	Export(ctx context.Context, processID string, databaseIDs []string) (string, error)
}

type snapshotExporter struct {
	repo   repositories.CatalogRepository
	store  ObjectStore
	cfg    config.ExportConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewSnapshotExporter creates an exporter. A nil store or empty bucket
// disables exporting.
func NewSnapshotExporter(repo repositories.CatalogRepository, store ObjectStore, cfg config.ExportConfig, logger *zap.Logger) SnapshotExporter {
	return &snapshotExporter{
		repo:   repo,
		store:  store,
		cfg:    cfg,
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

func (e *snapshotExporter) Enabled() bool {
	return e.store != nil && e.cfg.S3Bucket != ""
}

// Export returns the s3:// URI of the written document.
func (e *snapshotExporter) Export(ctx context.Context, processID string, databaseIDs []string) (string, error) {
	if !e.Enabled() {
		return "", nil
	}

	snapshot, err := e.repo.Snapshot(ctx, databaseIDs)
	if err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}
	snapshot.ProcessID = processID
	snapshot.GeneratedAt = e.now().UTC()

	data, contentType, ext, err := encodeSnapshot(snapshot, e.cfg.Format)
	if err != nil {
		return "", err
	}

	key := path.Join(e.cfg.S3Prefix, processID+ext)
	if err := e.store.Put(ctx, e.cfg.S3Bucket, key, contentType, data); err != nil {
		return "", err
	}

	uri := fmt.Sprintf("s3://%s/%s", e.cfg.S3Bucket, key)
	e.logger.Info("Snapshot exported",
		zap.String("process_id", processID),
		zap.String("uri", uri),
		zap.Int("tables", len(snapshot.Tables)),
		zap.Int("columns", len(snapshot.Columns)))
	return uri, nil
}

func encodeSnapshot(snapshot *models.Snapshot, format string) ([]byte, string, string, error) {
	switch format {
	case "yaml":
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return nil, "", "", fmt.Errorf("encode snapshot: %w", err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, "", "", fmt.Errorf("encode snapshot: %w", err)
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, "", "", fmt.Errorf("encode snapshot as yaml: %w", err)
		}
		return data, "application/yaml", ".yaml", nil
	case "", "json":
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return nil, "", "", fmt.Errorf("encode snapshot as json: %w", err)
		}
		return data, "application/json", ".json", nil
	}
	return nil, "", "", fmt.Errorf("unsupported export format %q", format)
}
