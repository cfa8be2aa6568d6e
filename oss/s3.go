package oss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Adapter implements Interface for AWS S3 and S3-compatible services.
type S3Adapter struct {
	client *s3.Client
}

// NewS3Adapter creates a new S3 storage adapter.
// Static credentials are used when id and secret are set, otherwise the
// default AWS credential chain applies.
func NewS3Adapter(ctx context.Context, c *Config) (*S3Adapter, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.Region),
	}
	if c.ID != "" && c.Secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.ID, c.Secret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Adapter{client: client}, nil
}

// GetStream returns a readable stream for the S3 object.
func (a *S3Adapter) GetStream(ctx context.Context, loc Location) (io.ReadCloser, error) {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, s3Error("get", loc, err)
	}
	return resp.Body, nil
}

// Stat retrieves object metadata without downloading content.
func (a *S3Adapter) Stat(ctx context.Context, loc Location) (*Object, error) {
	resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, s3Error("head", loc, err)
	}
	return &Object{
		Location:     loc,
		LastModified: resp.LastModified,
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         aws.ToString(resp.ETag),
	}, nil
}

// Put uploads an object from the given reader.
func (a *S3Adapter) Put(ctx context.Context, loc Location, r io.Reader, size int64) (*Object, error) {
	if r == nil {
		return nil, errors.New("reader cannot be nil")
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        r,
		ContentType: aws.String(contentType(loc.Key)),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	resp, err := a.client.PutObject(ctx, in)
	if err != nil {
		return nil, s3Error("put", loc, err)
	}
	return &Object{Location: loc, Size: size, ETag: aws.ToString(resp.ETag)}, nil
}

// Delete removes an object. S3 reports success for missing keys, so the
// object is checked first.
func (a *S3Adapter) Delete(ctx context.Context, loc Location) error {
	if _, err := a.Stat(ctx, loc); err != nil {
		return err
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return s3Error("delete", loc, err)
	}
	return nil
}

// Copy performs a server-side copy.
func (a *S3Adapter) Copy(ctx context.Context, src, dst Location) error {
	_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dst.Bucket),
		Key:        aws.String(dst.Key),
		CopySource: aws.String(copySource(src)),
	})
	if err != nil {
		// the failing side is not reported separately; src is the usual culprit
		return s3Error("copy", src, err)
	}
	return nil
}

// CreateMultipartUpload starts a multipart upload.
func (a *S3Adapter) CreateMultipartUpload(ctx context.Context, dst Location) (string, error) {
	resp, err := a.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(dst.Bucket),
		Key:         aws.String(dst.Key),
		ContentType: aws.String(contentType(dst.Key)),
	})
	if err != nil {
		return "", s3Error("create multipart", dst, err)
	}
	return aws.ToString(resp.UploadId), nil
}

// UploadPart uploads one numbered part.
func (a *S3Adapter) UploadPart(ctx context.Context, dst Location, uploadID string, n int32, data []byte) (Part, error) {
	resp, err := a.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(dst.Bucket),
		Key:           aws.String(dst.Key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(n),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return Part{}, s3Error(fmt.Sprintf("upload part %d", n), dst, err)
	}
	return Part{Number: n, ETag: aws.ToString(resp.ETag), Size: int64(len(data))}, nil
}

// CompleteMultipartUpload assembles the parts into the final object.
func (a *S3Adapter) CompleteMultipartUpload(ctx context.Context, dst Location, uploadID string, parts []Part) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.Number),
		})
	}
	_, err := a.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(dst.Bucket),
		Key:             aws.String(dst.Key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return s3Error("complete multipart", dst, err)
	}
	return nil
}

// AbortMultipartUpload discards an unfinished upload.
func (a *S3Adapter) AbortMultipartUpload(ctx context.Context, dst Location, uploadID string) error {
	_, err := a.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(dst.Bucket),
		Key:      aws.String(dst.Key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return s3Error("abort multipart", dst, err)
	}
	return nil
}

// copySource escapes each key segment but keeps the separators.
func copySource(src Location) string {
	segs := strings.Split(src.Key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return src.Bucket + "/" + strings.Join(segs, "/")
}

// s3Error classifies an SDK error.
func s3Error(op string, loc Location, err error) error {
	kind := kindFromNetwork(err)

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		kind = kindFromStatus(re.HTTPStatusCode())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket", "NoSuchUpload":
			kind = KindNotFound
		case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			kind = KindPermission
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			kind = KindTransient
		}
	}

	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		kind = KindNotFound
	}

	return newError(op, loc, kind, err)
}

// s3Driver implements the Driver interface for AWS S3.
type s3Driver struct{}

func (d *s3Driver) Name() string {
	return "s3"
}

func (d *s3Driver) Connect(ctx context.Context, cfg *Config) (Interface, error) {
	return NewS3Adapter(ctx, cfg)
}

func init() {
	RegisterDriver(&s3Driver{})
}
