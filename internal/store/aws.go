package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmorgan81/unigen/internal/log"
)

type putAPI interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader puts objects in Bucket and hands back presigned GET URLs, so
// the bucket never needs a public-read policy. Links stop working after
// Expiry.
type S3Uploader struct {
	Client    putAPI
	Presigner presignAPI
	Bucket    string
	Expiry    time.Duration
}

func NewS3Uploader(client *s3.Client, bucket string, expiry time.Duration) *S3Uploader {
	return &S3Uploader{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
		Expiry:    expiry,
	}
}

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) (string, error) {
	if u.Bucket == "" {
		return "", ErrBucketNotConfigured
	}

	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With(
		"name", params.Name,
		"content-type", params.ContentType,
		"bucket", u.Bucket,
	)
	log.Info("uploading to s3")

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(params.Name),
		ContentType: aws.String(params.ContentType),
		Body:        bytes.NewReader(params.Data),
		Metadata:    params.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("putting %s: %w", params.Name, err)
	}

	req, err := u.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(params.Name),
	}, s3.WithPresignExpires(u.Expiry))
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", params.Name, err)
	}
	log.Info("uploaded", "expires_in", u.Expiry)
	return req.URL, nil
}
