// Package export writes point-in-time snapshots of the account corpus to an
// S3-compatible object store.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/docstore"
	"github.com/dmitrijs2005/authstore/internal/logging"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	timeNow = time.Now
)

// S3Settings holds the object-store connection parameters. RootUser and
// RootPassword map to MINIO_ROOT_USER / MINIO_ROOT_PASSWORD when the target
// is MinIO.
type S3Settings struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

type snapshotDocument struct {
	Key     string          `json:"key"`
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

type snapshot struct {
	Kind       string             `json:"kind"`
	ExportedAt time.Time          `json:"exportedAt"`
	Documents  []snapshotDocument `json:"documents"`
}

type Exporter struct {
	lister   docstore.Lister
	kind     string
	settings S3Settings
	logger   logging.Logger
}

func NewExporter(lister docstore.Lister, kind string, settings S3Settings, logger logging.Logger) *Exporter {
	return &Exporter{lister: lister, kind: kind, settings: settings, logger: logger}
}

// GetRandomStorageKey returns a date-partitioned object key for one snapshot.
func GetRandomStorageKey(kind string) string {
	d := timeNow()
	return fmt.Sprintf("snapshots/%s/%d/%d/%d/%v.json", kind, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (e *Exporter) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(e.settings.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.settings.RootUser,
			e.settings.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if e.settings.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(e.settings.BaseEndpoint)
		}
	})

	return client, nil
}

// Export lists every document of the exporter's kind, marshals them into one
// snapshot object and uploads it. It returns the object key and the number
// of documents written.
func (e *Exporter) Export(ctx context.Context) (string, int, error) {
	docs, err := e.lister.ListKind(ctx, e.kind)
	if err != nil {
		return "", 0, err
	}

	snap := snapshot{
		Kind:       e.kind,
		ExportedAt: timeNow().UTC(),
		Documents:  make([]snapshotDocument, 0, len(docs)),
	}
	for _, d := range docs {
		snap.Documents = append(snap.Documents, snapshotDocument{
			Key:     d.Key,
			Version: d.Version,
			Data:    json.RawMessage(d.Data),
		})
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", 0, err
	}

	client, err := e.getClient(ctx)
	if err != nil {
		return "", 0, err
	}

	bucket := e.settings.Bucket
	key := GetRandomStorageKey(e.kind)
	contentType := "application/json"

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}

	e.logger.Info(ctx, "snapshot uploaded", "kind", e.kind, "key", key, "documents", len(snap.Documents))

	return key, len(snap.Documents), nil
}
