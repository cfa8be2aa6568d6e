package oss

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Interface implementation. It enforces the same
// multipart rules as S3, which makes it suitable for dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[Location]memObject
	uploads map[string]*memUpload
}

type memObject struct {
	data     []byte
	modified time.Time
}

type memUpload struct {
	dst   Location
	parts map[int32]Part
	data  map[int32][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[Location]memObject),
		uploads: make(map[string]*memUpload),
	}
}

func (m *Memory) GetStream(_ context.Context, loc Location) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[loc]
	if !ok {
		return nil, newError("get", loc, KindNotFound, errors.New("NoSuchKey"))
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) Stat(_ context.Context, loc Location) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[loc]
	if !ok {
		return nil, newError("head", loc, KindNotFound, errors.New("NotFound"))
	}
	modified := obj.modified
	return &Object{Location: loc, LastModified: &modified, Size: int64(len(obj.data)), ETag: etag(obj.data)}, nil
}

func (m *Memory) Put(_ context.Context, loc Location, r io.Reader, _ int64) (*Object, error) {
	if r == nil {
		return nil, errors.New("reader cannot be nil")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError("put", loc, KindUnknown, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.objects[loc] = memObject{data: data, modified: now}
	return &Object{Location: loc, LastModified: &now, Size: int64(len(data)), ETag: etag(data)}, nil
}

func (m *Memory) Delete(_ context.Context, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[loc]; !ok {
		return newError("delete", loc, KindNotFound, errors.New("NoSuchKey"))
	}
	delete(m.objects, loc)
	return nil
}

func (m *Memory) Copy(_ context.Context, src, dst Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[src]
	if !ok {
		return newError("copy", src, KindNotFound, errors.New("NoSuchKey"))
	}
	m.objects[dst] = memObject{data: bytes.Clone(obj.data), modified: time.Now()}
	return nil
}

func (m *Memory) CreateMultipartUpload(_ context.Context, dst Location) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.uploads[id] = &memUpload{
		dst:   dst,
		parts: make(map[int32]Part),
		data:  make(map[int32][]byte),
	}
	return id, nil
}

func (m *Memory) UploadPart(_ context.Context, dst Location, uploadID string, n int32, data []byte) (Part, error) {
	if err := checkPartNumber(n); err != nil {
		return Part{}, newError("upload part", dst, KindUnknown, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok || up.dst != dst {
		return Part{}, newError("upload part", dst, KindNotFound, errNoSuchUpload)
	}
	p := Part{Number: n, ETag: etag(data), Size: int64(len(data))}
	up.parts[n] = p
	up.data[n] = bytes.Clone(data)
	return p, nil
}

func (m *Memory) CompleteMultipartUpload(_ context.Context, dst Location, uploadID string, parts []Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok || up.dst != dst {
		return newError("complete multipart", dst, KindNotFound, errNoSuchUpload)
	}
	if err := checkCompletion(parts, up.parts); err != nil {
		return newError("complete multipart", dst, KindUnknown, err)
	}
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(up.data[p.Number])
	}
	m.objects[dst] = memObject{data: buf.Bytes(), modified: time.Now()}
	delete(m.uploads, uploadID)
	return nil
}

func (m *Memory) AbortMultipartUpload(_ context.Context, dst Location, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok || up.dst != dst {
		return newError("abort multipart", dst, KindNotFound, errNoSuchUpload)
	}
	delete(m.uploads, uploadID)
	return nil
}

// PendingUploads returns the number of multipart uploads neither completed
// nor aborted.
func (m *Memory) PendingUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}
