package oss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioAdapter implements Interface on top of the MinIO client. The
// low-level Core is needed for explicit multipart control.
type MinioAdapter struct {
	core *minio.Core
}

// NewMinioAdapter creates a MinIO storage adapter.
func NewMinioAdapter(c *Config) (*MinioAdapter, error) {
	core, err := minio.NewCore(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.ID, c.Secret, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioAdapter{core: core}, nil
}

// GetStream returns the object content. minio opens objects lazily, so the
// object is stat'ed up front to surface missing keys here.
func (a *MinioAdapter) GetStream(ctx context.Context, loc Location) (io.ReadCloser, error) {
	object, err := a.core.Client.GetObject(ctx, loc.Bucket, loc.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError("get", loc, err)
	}
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, minioError("get", loc, err)
	}
	return object, nil
}

func (a *MinioAdapter) Stat(ctx context.Context, loc Location) (*Object, error) {
	info, err := a.core.Client.StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{})
	if err != nil {
		return nil, minioError("head", loc, err)
	}
	modified := info.LastModified
	return &Object{
		Location:     loc,
		LastModified: &modified,
		Size:         info.Size,
		ETag:         info.ETag,
	}, nil
}

func (a *MinioAdapter) Put(ctx context.Context, loc Location, r io.Reader, size int64) (*Object, error) {
	if r == nil {
		return nil, errors.New("reader cannot be nil")
	}
	info, err := a.core.Client.PutObject(ctx, loc.Bucket, loc.Key, r, size, minio.PutObjectOptions{
		ContentType: contentType(loc.Key),
	})
	if err != nil {
		return nil, minioError("put", loc, err)
	}
	modified := info.LastModified
	return &Object{Location: loc, LastModified: &modified, Size: info.Size, ETag: info.ETag}, nil
}

// Delete removes an object; RemoveObject ignores missing keys so the object
// is checked first.
func (a *MinioAdapter) Delete(ctx context.Context, loc Location) error {
	if _, err := a.Stat(ctx, loc); err != nil {
		return err
	}
	if err := a.core.Client.RemoveObject(ctx, loc.Bucket, loc.Key, minio.RemoveObjectOptions{}); err != nil {
		return minioError("delete", loc, err)
	}
	return nil
}

func (a *MinioAdapter) Copy(ctx context.Context, src, dst Location) error {
	_, err := a.core.Client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dst.Bucket, Object: dst.Key},
		minio.CopySrcOptions{Bucket: src.Bucket, Object: src.Key},
	)
	if err != nil {
		return minioError("copy", src, err)
	}
	return nil
}

func (a *MinioAdapter) CreateMultipartUpload(ctx context.Context, dst Location) (string, error) {
	id, err := a.core.NewMultipartUpload(ctx, dst.Bucket, dst.Key, minio.PutObjectOptions{
		ContentType: contentType(dst.Key),
	})
	if err != nil {
		return "", minioError("create multipart", dst, err)
	}
	return id, nil
}

func (a *MinioAdapter) UploadPart(ctx context.Context, dst Location, uploadID string, n int32, data []byte) (Part, error) {
	part, err := a.core.PutObjectPart(ctx, dst.Bucket, dst.Key, uploadID, int(n),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{})
	if err != nil {
		return Part{}, minioError(fmt.Sprintf("upload part %d", n), dst, err)
	}
	return Part{Number: n, ETag: part.ETag, Size: int64(len(data))}, nil
}

func (a *MinioAdapter) CompleteMultipartUpload(ctx context.Context, dst Location, uploadID string, parts []Part) error {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, minio.CompletePart{PartNumber: int(p.Number), ETag: p.ETag})
	}
	_, err := a.core.CompleteMultipartUpload(ctx, dst.Bucket, dst.Key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return minioError("complete multipart", dst, err)
	}
	return nil
}

func (a *MinioAdapter) AbortMultipartUpload(ctx context.Context, dst Location, uploadID string) error {
	if err := a.core.AbortMultipartUpload(ctx, dst.Bucket, dst.Key, uploadID); err != nil {
		return minioError("abort multipart", dst, err)
	}
	return nil
}

func minioError(op string, loc Location, err error) error {
	kind := kindFromNetwork(err)
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		kind = kindFromStatus(resp.StatusCode)
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NoSuchUpload":
		kind = KindNotFound
	case "AccessDenied":
		kind = KindPermission
	}
	return newError(op, loc, kind, err)
}

type minioDriver struct{}

func (d *minioDriver) Name() string {
	return "minio"
}

func (d *minioDriver) Connect(_ context.Context, cfg *Config) (Interface, error) {
	return NewMinioAdapter(cfg)
}

func init() {
	RegisterDriver(&minioDriver{})
}
