// Package storage resolves report media against Supabase Storage through its
// S3-compatible endpoint.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecoguard/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the slice of the s3 client the media store needs.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type SupabaseMedia struct {
	client    ObjectAPI
	projectID string
	bucket    string
}

func NewSupabaseMedia(client ObjectAPI, projectID, bucket string) *SupabaseMedia {
	return &SupabaseMedia{
		client:    client,
		projectID: projectID,
		bucket:    bucket,
	}
}

// NewS3Client points an s3 client at the Supabase storage endpoint. Supabase
// only supports path-style addressing.
func NewS3Client(awsConfig aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
}

func (m *SupabaseMedia) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.supabase.co/storage/v1/object/public/%s/%s",
		m.projectID, m.bucket, strings.TrimPrefix(key, "/"))
}

func (m *SupabaseMedia) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}

	return false, &types.RemoteError{Service: "media", Message: "failed to check object", Retryable: true, Err: err}
}
