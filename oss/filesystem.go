package oss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const uploadsDir = ".uploads"

// FileSystem stores objects on local disk as <root>/<bucket>/<key>.
// Multipart uploads are staged under <root>/.uploads/<id>.
type FileSystem struct {
	root string
}

// NewFileSystem creates a local store, creating root if needed.
func NewFileSystem(root string) (*FileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileSystem{root: abs}, nil
}

// path resolves loc below root and refuses anything that escapes it.
func (f *FileSystem) path(loc Location) (string, error) {
	p := filepath.Join(f.root, loc.Bucket, filepath.FromSlash(loc.Key))
	if !strings.HasPrefix(p, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("location %s escapes storage root", loc)
	}
	// checked after cleaning so that "b/../.uploads/..." is caught too
	rel := strings.TrimPrefix(p, f.root+string(filepath.Separator))
	if first, _, _ := strings.Cut(rel, string(filepath.Separator)); first == uploadsDir {
		return "", fmt.Errorf("location %s is inside the reserved %q directory", loc, uploadsDir)
	}
	return p, nil
}

func fsError(op string, loc Location, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newError(op, loc, KindNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return newError(op, loc, KindPermission, err)
	default:
		return newError(op, loc, KindUnknown, err)
	}
}

func (f *FileSystem) GetStream(_ context.Context, loc Location) (io.ReadCloser, error) {
	p, err := f.path(loc)
	if err != nil {
		return nil, fsError("get", loc, err)
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, fsError("get", loc, err)
	}
	return file, nil
}

func (f *FileSystem) Stat(_ context.Context, loc Location) (*Object, error) {
	p, err := f.path(loc)
	if err != nil {
		return nil, fsError("head", loc, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fsError("head", loc, err)
	}
	if info.IsDir() {
		return nil, fsError("head", loc, fs.ErrNotExist)
	}
	modified := info.ModTime()
	return &Object{Location: loc, LastModified: &modified, Size: info.Size()}, nil
}

// writeFile writes via a temp file + rename so readers never see partial objects.
func writeFile(p string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

func (f *FileSystem) Put(_ context.Context, loc Location, r io.Reader, _ int64) (*Object, error) {
	if r == nil {
		return nil, errors.New("reader cannot be nil")
	}
	p, err := f.path(loc)
	if err != nil {
		return nil, fsError("put", loc, err)
	}
	n, err := writeFile(p, r)
	if err != nil {
		return nil, fsError("put", loc, err)
	}
	return &Object{Location: loc, Size: n}, nil
}

func (f *FileSystem) Delete(_ context.Context, loc Location) error {
	p, err := f.path(loc)
	if err != nil {
		return fsError("delete", loc, err)
	}
	if err := os.Remove(p); err != nil {
		return fsError("delete", loc, err)
	}
	return nil
}

func (f *FileSystem) Copy(_ context.Context, src, dst Location) error {
	sp, err := f.path(src)
	if err != nil {
		return fsError("copy", src, err)
	}
	dp, err := f.path(dst)
	if err != nil {
		return fsError("copy", dst, err)
	}
	in, err := os.Open(sp)
	if err != nil {
		return fsError("copy", src, err)
	}
	defer in.Close()
	if _, err := writeFile(dp, in); err != nil {
		return fsError("copy", dst, err)
	}
	return nil
}

type fsUploadMeta struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (f *FileSystem) uploadDir(id string) string {
	return filepath.Join(f.root, uploadsDir, id)
}

// openUpload checks that id exists and belongs to dst.
func (f *FileSystem) openUpload(dst Location, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", errNoSuchUpload
	}
	dir := f.uploadDir(id)
	raw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return "", errNoSuchUpload
	}
	var meta fsUploadMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", fmt.Errorf("corrupt upload metadata: %w", err)
	}
	if meta.Bucket != dst.Bucket || meta.Key != dst.Key {
		return "", errNoSuchUpload
	}
	return dir, nil
}

func (f *FileSystem) CreateMultipartUpload(_ context.Context, dst Location) (string, error) {
	if _, err := f.path(dst); err != nil {
		return "", fsError("create multipart", dst, err)
	}
	id := uuid.NewString()
	dir := f.uploadDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fsError("create multipart", dst, err)
	}
	raw, _ := json.Marshal(fsUploadMeta{Bucket: dst.Bucket, Key: dst.Key})
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), raw, 0o644); err != nil {
		return "", fsError("create multipart", dst, err)
	}
	return id, nil
}

func partFile(dir string, n int32) string {
	return filepath.Join(dir, "part-"+strconv.Itoa(int(n)))
}

func (f *FileSystem) UploadPart(_ context.Context, dst Location, uploadID string, n int32, data []byte) (Part, error) {
	op := fmt.Sprintf("upload part %d", n)
	if err := checkPartNumber(n); err != nil {
		return Part{}, newError(op, dst, KindUnknown, err)
	}
	dir, err := f.openUpload(dst, uploadID)
	if err != nil {
		return Part{}, newError(op, dst, KindNotFound, err)
	}
	if _, err := writeFile(partFile(dir, n), bytes.NewReader(data)); err != nil {
		return Part{}, fsError(op, dst, err)
	}
	return Part{Number: n, ETag: etag(data), Size: int64(len(data))}, nil
}

func (f *FileSystem) CompleteMultipartUpload(_ context.Context, dst Location, uploadID string, parts []Part) error {
	const op = "complete multipart"
	dir, err := f.openUpload(dst, uploadID)
	if err != nil {
		return newError(op, dst, KindNotFound, err)
	}

	stored := make(map[int32]Part, len(parts))
	for _, p := range parts {
		data, err := os.ReadFile(partFile(dir, p.Number))
		if err != nil {
			continue
		}
		stored[p.Number] = Part{Number: p.Number, ETag: etag(data), Size: int64(len(data))}
	}
	if err := checkCompletion(parts, stored); err != nil {
		return newError(op, dst, KindUnknown, err)
	}

	target, err := f.path(dst)
	if err != nil {
		return fsError(op, dst, err)
	}

	files := make([]*os.File, 0, len(parts))
	closeAll := func() {
		for _, file := range files {
			file.Close()
		}
	}
	readers := make([]io.Reader, 0, len(parts))
	for _, p := range parts {
		file, err := os.Open(partFile(dir, p.Number))
		if err != nil {
			closeAll()
			return fsError(op, dst, err)
		}
		files = append(files, file)
		readers = append(readers, file)
	}

	_, err = writeFile(target, io.MultiReader(readers...))
	closeAll()
	if err != nil {
		return fsError(op, dst, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fsError(op, dst, err)
	}
	return nil
}

func (f *FileSystem) AbortMultipartUpload(_ context.Context, dst Location, uploadID string) error {
	dir, err := f.openUpload(dst, uploadID)
	if err != nil {
		return newError("abort multipart", dst, KindNotFound, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fsError("abort multipart", dst, err)
	}
	return nil
}
