package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mahirjain10/object-pipeline/internal/pipeline"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects request.
const maxDeleteBatch = 1000

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Service is the S3 backed pipeline.BlobStore. Bucket names come from the
// caller on every call.
type S3Service struct {
	client   s3API
	pageSize int32
}

// Using Constructor Pattern to initalize our s3Service. A pageSize of 0 keeps
// the S3 default of 1000 keys per listing page.
func NewS3Service(client s3API, pageSize int32) *S3Service {
	return &S3Service{client: client, pageSize: pageSize}
}

func (service *S3Service) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := service.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't download object with key: %s, AWS error: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}
	logger.Log.Debug().Str("bucket", bucket).Str("key", key).Msg("download success")
	return body, nil
}

func (service *S3Service) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(body),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	}
	if _, err := service.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("couldn't upload object with key: %s, AWS error: %w", key, err)
	}
	logger.Log.Debug().Str("bucket", bucket).Str("key", key).Msg("upload success")
	return nil
}

func (service *S3Service) ListObjects(ctx context.Context, bucket, cursor string) (pipeline.ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}
	if service.pageSize > 0 {
		input.MaxKeys = aws.Int32(service.pageSize)
	}

	out, err := service.client.ListObjectsV2(ctx, input)
	if err != nil {
		return pipeline.ListPage{}, fmt.Errorf("couldn't list objects in bucket: %s, AWS error: %w", bucket, err)
	}

	page := pipeline.ListPage{
		Keys:       make([]string, 0, len(out.Contents)),
		NextCursor: aws.ToString(out.NextContinuationToken),
		Truncated:  aws.ToBool(out.IsTruncated),
	}
	for _, object := range out.Contents {
		page.Keys = append(page.Keys, aws.ToString(object.Key))
	}
	return page, nil
}

// DeleteObjects sends the keys in requests of at most maxDeleteBatch keys. S3
// rejects an empty request, so an empty key set makes no call.
func (service *S3Service) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]pipeline.DeleteError, error) {
	var failures []pipeline.DeleteError
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		identifiers := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := service.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return failures, fmt.Errorf("failed to delete objects in bucket %s: %w", bucket, err)
		}

		for _, e := range out.Errors {
			failures = append(failures, pipeline.DeleteError{
				Key:     aws.ToString(e.Key),
				Code:    aws.ToString(e.Code),
				Message: aws.ToString(e.Message),
			})
		}
	}
	return failures, nil
}

var _ pipeline.BlobStore = (*S3Service)(nil)
