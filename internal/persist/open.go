package persist

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dvloznov/cost-dashboard/internal/gcsuploader"
)

// Options selects and configures a backend.
type Options struct {
	Backend string `yaml:"backend" envconfig:"BACKEND" default:"memory" validate:"oneof=memory sqlite gcs s3"`
	Path    string `yaml:"path" envconfig:"SQLITE_PATH" default:"costdash.db"`
	Bucket  string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix  string `yaml:"prefix" envconfig:"PREFIX" default:"costdash"`
	Profile string `yaml:"profile" envconfig:"PROFILE" default:"default"`
	Region  string `yaml:"region" envconfig:"REGION"`
}

// Open creates the backend named in opts.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryKV(), nil

	case BackendSQLite:
		return OpenSQLite(ctx, opts.Path)

	case BackendGCS:
		if opts.Bucket == "" {
			return nil, fmt.Errorf("Open: gcs backend requires a bucket")
		}
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return nil, persistErr("Open: gcs", err)
		}
		kv := NewGCSKV(svc, opts.Bucket, opts.Prefix, opts.Profile)
		kv.closer = svc.Close
		return kv, nil

	case BackendS3:
		if opts.Bucket == "" {
			return nil, fmt.Errorf("Open: s3 backend requires a bucket")
		}
		cfg := aws.NewConfig()
		if opts.Region != "" {
			cfg = cfg.WithRegion(opts.Region)
		}
		sess, err := session.NewSessionWithOptions(session.Options{
			Config:            *cfg,
			SharedConfigState: session.SharedConfigEnable,
		})
		if err != nil {
			return nil, persistErr("Open: s3 session", err)
		}
		return NewS3KV(s3.New(sess), opts.Bucket, opts.Prefix, opts.Profile), nil
	}

	return nil, fmt.Errorf("Open: unknown backend %q", opts.Backend)
}
