package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStore archives transcripts as JSON objects in an S3-compatible
// bucket (AWS S3, DigitalOcean Spaces, MinIO).
type ObjectStore struct {
	client s3API
	bucket string
	prefix string
}

type objectDocument struct {
	JobID       string    `json:"job_id"`
	SourceURL   string    `json:"source_url"`
	SourceType  string    `json:"source_type"`
	Text        string    `json:"text"`
	Backend     string    `json:"backend_used"`
	WordCount   int       `json:"word_count"`
	SubmittedAt time.Time `json:"submitted_at"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewObjectStore creates a client for cfg. Static keys are used when both
// are set, otherwise the default AWS credential chain applies.
func NewObjectStore(ctx context.Context, cfg config.S3Config) (*ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newObjectStore(client, cfg.Bucket, cfg.Prefix), nil
}

func newObjectStore(client s3API, bucket, prefix string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *ObjectStore) key(jobID string) string {
	return path.Join(s.prefix, "transcripts", sanitizeFilename(jobID)+".json")
}

// Put uploads the transcript document and returns its key.
func (s *ObjectStore) Put(ctx context.Context, result *types.TranscriptionResult) (string, error) {
	body, err := json.Marshal(objectDocument{
		JobID:       result.JobID,
		SourceURL:   result.SourceURL,
		SourceType:  result.SourceType,
		Text:        result.Text,
		Backend:     result.Backend,
		WordCount:   result.WordCount,
		SubmittedAt: result.SubmittedAt,
		ProcessedAt: result.ProcessedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal data: %w", err)
	}

	key := s.key(result.JobID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save to object store: %w", err)
	}
	return key, nil
}

// Text fetches the archived transcript text for jobID.
func (s *ObjectStore) Text(ctx context.Context, jobID string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(jobID)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get from object store: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}
	var doc objectDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to decode data: %w", err)
	}
	return doc.Text, nil
}
