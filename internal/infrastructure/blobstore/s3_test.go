package blobstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type fakeObjectAPI struct {
	putInput *s3.PutObjectInput
	putErr   error
	headErr  error
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInput = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3StorePutIsConditional(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{}
	store, err := NewS3Store(api, "bucket", "https://cdn.example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := store.Put(context.Background(), "abc.jpg", []byte("bytes"))
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if url != "https://cdn.example.com/abc.jpg" {
		t.Fatalf("unexpected URL %s", url)
	}

	if api.putInput == nil {
		t.Fatal("PutObject not invoked")
	}
	if got := aws.ToString(api.putInput.IfNoneMatch); got != "*" {
		t.Fatalf("upload must be conditional, If-None-Match=%q", got)
	}
	if aws.ToString(api.putInput.Bucket) != "bucket" || aws.ToString(api.putInput.Key) != "abc.jpg" {
		t.Fatalf("unexpected target %s/%s", aws.ToString(api.putInput.Bucket), aws.ToString(api.putInput.Key))
	}
}

func TestS3StorePutDuplicateKeyResolvesExistingURL(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{
		putErr: fmt.Errorf("upload: %w", &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}),
	}
	store, err := NewS3Store(api, "bucket", "https://cdn.example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := store.Put(context.Background(), "abc.jpg", []byte("bytes"))
	if err != nil {
		t.Fatalf("losing the write race must still succeed, got %v", err)
	}
	if url != "https://cdn.example.com/abc.jpg" {
		t.Fatalf("expected existing object URL, got %s", url)
	}
}

func TestS3StorePutPropagatesOtherErrors(t *testing.T) {
	t.Parallel()

	api := &fakeObjectAPI{
		putErr: &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"},
	}
	store, err := NewS3Store(api, "bucket", "https://cdn.example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Put(context.Background(), "abc.jpg", []byte("bytes")); err == nil {
		t.Fatal("non-duplicate API error must propagate")
	}
}

func TestIsDuplicateErr(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"PreconditionFailed", "Duplicate", "KeyAlreadyExists"} {
		err := fmt.Errorf("upload: %w", &smithy.GenericAPIError{Code: code, Message: "exists"})
		if !isDuplicateErr(err) {
			t.Fatalf("code %s must count as duplicate", code)
		}
	}

	if isDuplicateErr(&smithy.GenericAPIError{Code: "AccessDenied"}) {
		t.Fatal("AccessDenied is not a duplicate condition")
	}
	if isDuplicateErr(errors.New("plain error")) {
		t.Fatal("non-API error is not a duplicate condition")
	}
}

func TestIsNotFoundErr(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"NotFound", "NoSuchKey"} {
		err := fmt.Errorf("head: %w", &smithy.GenericAPIError{Code: code})
		if !isNotFoundErr(err) {
			t.Fatalf("code %s must count as not found", code)
		}
	}
	if isNotFoundErr(&smithy.GenericAPIError{Code: "AccessDenied"}) {
		t.Fatal("AccessDenied is not a missing-object condition")
	}
}

func TestS3StorePublicURL(t *testing.T) {
	t.Parallel()

	store, err := NewS3Store(nil, "bucket", "https://cdn.example.com/", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.PublicURL("abc.jpg"); got != "https://cdn.example.com/abc.jpg" {
		t.Fatalf("unexpected URL %s", got)
	}
}

func TestNewS3StoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewS3Store(nil, "", "https://cdn.example.com", nil); err == nil {
		t.Fatal("empty bucket must be rejected")
	}
	if _, err := NewS3Store(nil, "bucket", "", nil); err == nil {
		t.Fatal("empty public base URL must be rejected")
	}
}
