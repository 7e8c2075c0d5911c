// Package s3 provides an S3-backed destination for transferred parts.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
	"github.com/marmos91/ferry/pkg/transfer"
)

// Config holds configuration for the S3 destination.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to every part key, e.g. "parts/".
	KeyPrefix string

	// AccessKeyID and SecretAccessKey override the default credential chain
	// when both are set.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool
}

// ObjectAPI is the subset of the S3 client used by Uploader.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Uploader writes each part as one object keyed
// <prefix><accountId>/<uuid>. It implements transfer.DestinationUploader
// and transfer.DestinationDeleter: the file service cannot see these
// objects, so compensation and deletion remove them here.
type Uploader struct {
	client    ObjectAPI
	bucket    string
	keyPrefix string
	newID     func() string
}

var (
	_ transfer.DestinationUploader = (*Uploader)(nil)
	_ transfer.DestinationDeleter  = (*Uploader)(nil)
)

// New creates an Uploader with an existing client.
func New(client ObjectAPI, config Config) *Uploader {
	return &Uploader{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
		newID:     uuid.NewString,
	}
}

// NewFromConfig builds the S3 client from config and returns an Uploader.
func NewFromConfig(ctx context.Context, config Config) (*Uploader, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.ForcePathStyle
		// the body is a pipe and cannot be rewound for a payload checksum
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return New(client, config), nil
}

func (u *Uploader) key(accountID string) string {
	return u.keyPrefix + accountID + "/" + u.newID()
}

// Upload streams chunks into a single PutObject of exactly size bytes. If
// ctx ends before chunks is closed, the pipe fails and the object is never
// created.
func (u *Uploader) Upload(ctx context.Context, accountID string, size uint64, chunks <-chan []byte) (transfer.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return transfer.UploadResult{}, err
	}

	key := u.key(accountID)
	ctx, span := telemetry.StartClientSpan(ctx, telemetry.SpanUpload,
		telemetry.AccountID(accountID), telemetry.Size(size))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	go feed(ctx, pw, chunks)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          pr,
		ContentLength: aws.Int64(int64(size)),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	_ = pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		telemetry.RecordError(ctx, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transfer.UploadResult{}, ctxErr
		}
		return transfer.UploadResult{}, fmt.Errorf("s3 put object: %w: %w", transfer.ErrTransient, err)
	}

	logger.DebugCtx(ctx, "Part stored",
		logger.KeyDriver, "s3",
		logger.KeyBucket, u.bucket,
		logger.KeyKey, key,
		logger.KeySize, size)
	return transfer.UploadResult{PartID: key, CanonicalName: key}, nil
}

// Delete removes the object holding part. The part ID is the object key.
// Deleting a missing key succeeds.
func (u *Uploader) Delete(ctx context.Context, part transfer.StoredPart) error {
	if part.PartID == "" {
		return errors.New("s3 delete: empty part id")
	}

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(part.PartID),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("s3 delete object: %w: %w", transfer.ErrTransient, err)
	}

	logger.DebugCtx(ctx, "Part object deleted",
		logger.KeyDriver, "s3",
		logger.KeyBucket, u.bucket,
		logger.KeyKey, part.PartID)
	return nil
}

// feed copies chunks into pw until chunks is closed or ctx ends. The pipe
// only reaches a clean EOF when chunks closes with ctx still live.
func feed(ctx context.Context, pw *io.PipeWriter, chunks <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			_ = pw.CloseWithError(ctx.Err())
			return
		case chunk, ok := <-chunks:
			if !ok {
				_ = pw.CloseWithError(ctx.Err())
				return
			}
			if _, err := pw.Write(chunk); err != nil {
				return
			}
		}
	}
}
