package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"TrendIllustrator/internal/ports"
)

// duplicateErrorCodes are "key already exists" conditions reported by S3 and
// S3-compatible object stores when a conditional write loses the race. The
// upload sends If-None-Match: * so an existing key rejects the overwrite;
// whoever loses the race must still succeed.
var duplicateErrorCodes = map[string]bool{
	"PreconditionFailed": true,
	"Duplicate":          true,
	"KeyAlreadyExists":   true,
}

// ObjectAPI is the slice of the S3 client the store depends on.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store uploads artifacts to a named bucket.
type S3Store struct {
	client        ObjectAPI
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

var _ ports.BlobStore = (*S3Store)(nil)

// NewS3Store wires an S3 client to one bucket. publicBaseURL is the prefix
// of the durable, publicly resolvable object URLs (CDN or website endpoint).
func NewS3Store(client ObjectAPI, bucket, publicBaseURL string, logger *slog.Logger) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 store bucket is empty")
	}
	if publicBaseURL == "" {
		return nil, fmt.Errorf("s3 store public base URL is empty")
	}
	return &S3Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// Put uploads data under key as a conditional write. If-None-Match: * makes
// S3 reject the overwrite when the key is already populated; that conflict is
// treated as success and the existing object's public URL is returned, which
// stands in for locking across overlapping runs.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	contentType := "image/jpeg"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isDuplicateErr(err) {
			if s.logger != nil {
				s.logger.Debug("key already populated, reusing existing object", "key", key)
			}
			return s.PublicURL(key), nil
		}
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return s.PublicURL(key), nil
}

// PublicURL joins the configured base with the key.
func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}

// Exists probes the object with a HEAD request.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}

// Stat returns object size and modification time.
func (s *S3Store) Stat(ctx context.Context, key string) (ports.ObjectInfo, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ports.ObjectInfo{}, fmt.Errorf("head %s: %w", key, err)
	}

	info := ports.ObjectInfo{Key: key}
	if head.ContentLength != nil {
		info.Size = *head.ContentLength
	}
	if head.LastModified != nil {
		info.ModifiedAt = *head.LastModified
	}
	return info, nil
}

func isDuplicateErr(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return duplicateErrorCodes[apiErr.ErrorCode()]
	}
	return false
}

func isNotFoundErr(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
