package binarydata

import (
	"context"
	"fmt"
	"bytes"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const s3Prefix = "s3:"

// S3Helper stores binary payloads in an S3 bucket under the same
// workflows/{workflowId}/executions/{executionId}/binary_data key shape
// as the filesystem backend. Static credentials plus region, loaded
// through config.LoadDefaultConfig.
type S3Helper struct {
	client *s3.Client
	bucket string
}

// NewS3Helper builds an S3Helper against bucket using static credentials
// for region.
func NewS3Helper(ctx context.Context, bucket, accessKey, secretKey, region string) (*S3Helper, error) {
	if bucket == "" {
		return nil, fmt.Errorf("binarydata: s3 bucket is required")
	}
	if region == "" {
		return nil, fmt.Errorf("binarydata: s3 region is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("binarydata: load aws config: %w", err)
	}

	return &S3Helper{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (h *S3Helper) objectKey(loc Locator, name string) string {
	return fmt.Sprintf("workflows/%s/executions/%s/binary_data/%s", loc.WorkflowID, loc.ExecutionID, name)
}

func (h *S3Helper) Store(ctx context.Context, loc Locator, data []byte, opts StoreOptions) (string, int64, error) {
	name := uuid.NewString()
	key := h.objectKey(loc, name)

	putInput := &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"filename": opts.FileName,
			"mimetype": opts.MimeType,
		},
	}
	if opts.MimeType != "" {
		putInput.ContentType = aws.String(opts.MimeType)
	}

	if _, err := h.client.PutObject(ctx, putInput); err != nil {
		return "", 0, fmt.Errorf("binarydata: s3 put object: %w", err)
	}

	id := s3Prefix + loc.WorkflowID + "/" + loc.ExecutionID + "/" + name
	return id, int64(len(data)), nil
}

func (h *S3Helper) keyFromID(id string) (string, error) {
	rel, ok := trimMode(id, s3Prefix)
	if !ok {
		return "", &ErrUnknownMode{ID: id}
	}
	segs := strings.Split(rel, "/")
	if len(segs) != 3 {
		return "", fmt.Errorf("binarydata: malformed s3 id %q", id)
	}
	return fmt.Sprintf("workflows/%s/executions/%s/binary_data/%s", segs[0], segs[1], segs[2]), nil
}

func (h *S3Helper) GetAsBuffer(ctx context.Context, id string) ([]byte, error) {
	key, err := h.keyFromID(id)
	if err != nil {
		return nil, err
	}
	result, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("binarydata: s3 get object %s: %w", id, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("binarydata: s3 read body %s: %w", id, err)
	}
	return data, nil
}

func (h *S3Helper) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	key, err := h.keyFromID(id)
	if err != nil {
		return Metadata{}, err
	}
	head, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("binarydata: s3 head object %s: %w", id, err)
	}
	return Metadata{
		FileSize: aws.ToInt64(head.ContentLength),
		FileName: head.Metadata["filename"],
		MimeType: head.Metadata["mimetype"],
	}, nil
}

func (h *S3Helper) Delete(ctx context.Context, id string) error {
	key, err := h.keyFromID(id)
	if err != nil {
		return err
	}
	if _, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("binarydata: s3 delete object %s: %w", id, err)
	}
	return nil
}

var _ Helper = (*S3Helper)(nil)
