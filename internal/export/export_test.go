package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/docstore"
	"github.com/dmitrijs2005/authstore/internal/logging"
)

func testLogger() *logging.SlogLogger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func testSettings() S3Settings {
	return S3Settings{
		RootUser:     "minioadmin",
		RootPassword: "minioadmin",
		Bucket:       "authstore",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
	}
}

func seedStore(t *testing.T) *docstore.InMemoryStore {
	t.Helper()
	ctx := context.Background()
	mem := docstore.NewInMemoryStore()
	if _, err := mem.Put(ctx, "authentication-account", "alice", []byte(`{"username":"alice"}`), 0); err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	if _, err := mem.Put(ctx, "authentication-account", "bob", []byte(`{"username":"bob"}`), 0); err != nil {
		t.Fatalf("seed bob: %v", err)
	}
	return mem
}

func TestExport_UploadsSnapshot(t *testing.T) {
	mem := seedStore(t)

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		putObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("BaseEndpoint not applied")
		}
		return &s3.Client{}
	}

	var captured *s3.PutObjectInput
	var body []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		var err error
		body, err = io.ReadAll(in.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured = in
		return &s3.PutObjectOutput{}, nil
	}

	origNow := timeNow
	t.Cleanup(func() { timeNow = origNow })
	timeNow = func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) }

	exp := NewExporter(mem, "authentication-account", testSettings(), testLogger())
	key, count, err := exp.Export(context.Background())
	if err != nil {
		t.Fatalf("Export err: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 documents, got %d", count)
	}
	if !strings.HasPrefix(key, "snapshots/authentication-account/2025/3/9/") {
		t.Fatalf("unexpected key: %q", key)
	}
	if captured == nil || *captured.Bucket != "authstore" || *captured.Key != key {
		t.Fatalf("put input not populated: %+v", captured)
	}

	var snap snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Kind != "authentication-account" || len(snap.Documents) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	for _, d := range snap.Documents {
		if d.Version != 1 {
			t.Fatalf("expected version 1, got %d", d.Version)
		}
	}
}

func TestExport_PutError(t *testing.T) {
	mem := seedStore(t)

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		putObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("connection refused")
	}

	exp := NewExporter(mem, "authentication-account", testSettings(), testLogger())
	_, _, err := exp.Export(context.Background())
	if !errors.Is(err, common.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestExport_LoadConfigError(t *testing.T) {
	mem := seedStore(t)

	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad credentials")
	}

	exp := NewExporter(mem, "authentication-account", testSettings(), testLogger())
	_, _, err := exp.Export(context.Background())
	if !errors.Is(err, common.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
