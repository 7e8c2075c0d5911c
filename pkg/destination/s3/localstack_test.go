//go:build integration

package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/ferry/pkg/transfer"
)

// localstackEndpoint returns LOCALSTACK_ENDPOINT when set, otherwise starts
// a Localstack container for the test.
func localstackEndpoint(t *testing.T) string {
	t.Helper()
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.0",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":       "s3",
				"DEFAULT_REGION": "us-east-1",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4566/tcp"),
				wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestUploaderAgainstLocalstack(t *testing.T) {
	ctx := context.Background()
	endpoint := localstackEndpoint(t)

	cfg := Config{
		Bucket:          "ferry-parts",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		KeyPrefix:       "parts/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)

	up, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("ferry"), 40_000)
	chunks := make(chan []byte, 4)
	go func() {
		defer close(chunks)
		for off := 0; off < len(payload); off += 64 * 1024 {
			end := min(off+64*1024, len(payload))
			chunks <- payload[off:end]
		}
	}()

	res, err := up.Upload(ctx, "acct-1", uint64(len(payload)), chunks)
	require.NoError(t, err)
	assert.Regexp(t, `^parts/acct-1/[0-9a-f-]{36}$`, res.PartID)

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(cfg.Bucket), Key: aws.String(res.PartID)})
	require.NoError(t, err)
	defer func() { _ = obj.Body.Close() }()
	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, up.Delete(ctx, transfer.StoredPart{PartID: res.PartID, OwnerID: "acct-1"}))
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(cfg.Bucket), Key: aws.String(res.PartID)})
	assert.Error(t, err)
}
