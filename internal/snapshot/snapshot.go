// Package snapshot saves and restores logical database dumps through
// S3, so a teammate can seed their local stack from a known-good state
// instead of replaying migrations from scratch.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Execer runs a command inside a running container. Satisfied by
// docker.Manager; tests plug in a fake.
type Execer interface {
	Exec(ctx context.Context, containerName string, cmd []string, stdin io.Reader) ([]byte, error)
}

// uploader and downloader are the slices of the transfer manager we
// use, kept as interfaces so tests never touch the network.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

type lister interface {
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store moves dumps between the local stack and an S3 bucket.
type Store struct {
	bucket     string
	uploader   uploader
	downloader downloader
	lister     lister
	now        func() time.Time
}

// NewStore builds a Store against the default AWS credential chain.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Store{
		bucket:     bucket,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		lister:     client,
		now:        time.Now,
	}, nil
}

// Key layout: <project>/<UTC timestamp>.sql. The timestamp format
// sorts lexicographically in chronological order, so Latest is a plain
// max over keys.
func (s *Store) key(project string) string {
	return fmt.Sprintf("%s/%s.sql", project, s.now().UTC().Format("20060102T150405Z"))
}

// Save execs pg_dump in the database container and uploads the dump.
// It returns the object key the snapshot landed under.
func (s *Store) Save(ctx context.Context, ex Execer, containerName, user, dbName, project string) (string, error) {
	fmt.Printf("Dumping database %s from %s...\n", dbName, containerName)
	dump, err := ex.Exec(ctx, containerName, []string{"pg_dump", "--clean", "--if-exists", "-U", user, dbName}, nil)
	if err != nil {
		return "", fmt.Errorf("pg_dump failed: %w", err)
	}

	key := s.key(project)
	fmt.Printf("Uploading snapshot to s3://%s/%s (%d bytes)...\n", s.bucket, key, len(dump))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(dump),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return key, nil
}

// Restore downloads a snapshot (the given key, or the latest for the
// project when key is empty) and pipes it through psql in the database
// container.
func (s *Store) Restore(ctx context.Context, ex Execer, containerName, user, dbName, project, key string) error {
	if key == "" {
		latest, err := s.Latest(ctx, project)
		if err != nil {
			return err
		}
		key = latest
	}

	fmt.Printf("Downloading snapshot s3://%s/%s...\n", s.bucket, key)
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download snapshot %s: %w", key, err)
	}

	fmt.Printf("Restoring database %s in %s...\n", dbName, containerName)
	_, err = ex.Exec(ctx, containerName, []string{"psql", "-U", user, "-d", dbName}, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("psql restore failed: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot key for the project. S3
// pages the listing at 1000 keys in ascending order, so every page
// must be walked; stopping after the first would hand back the oldest
// snapshots of a long-lived project.
func (s *Store) Latest(ctx context.Context, project string) (string, error) {
	prefix := project + "/"
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	for {
		out, err := s.lister.ListObjectsV2(ctx, input)
		if err != nil {
			return "", fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, ".sql") {
				keys = append(keys, *obj.Key)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}

	if len(keys) == 0 {
		return "", fmt.Errorf("no snapshots found under s3://%s/%s", s.bucket, prefix)
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}
