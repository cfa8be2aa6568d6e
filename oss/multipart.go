package oss

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	errNoParts        = errors.New("MalformedXML: at least one part is required")
	errPartOrder      = errors.New("InvalidPartOrder: part numbers must be ascending")
	errPartMissing    = errors.New("InvalidPart: part was not uploaded or etag does not match")
	errEntityTooSmall = errors.New("EntityTooSmall: part is smaller than the minimum allowed size")
	errNoSuchUpload   = errors.New("NoSuchUpload: upload does not exist")
)

// etag mimics the S3 single-part ETag: quoted hex MD5.
func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// checkCompletion enforces the rules S3 applies in CompleteMultipartUpload:
// at least one part, ascending numbers, known etags, and every part except
// the last at least MinPartSize.
func checkCompletion(parts []Part, stored map[int32]Part) error {
	if len(parts) == 0 {
		return errNoParts
	}
	for i, p := range parts {
		if i > 0 && p.Number <= parts[i-1].Number {
			return errPartOrder
		}
		got, ok := stored[p.Number]
		if !ok || got.ETag != p.ETag {
			return fmt.Errorf("%w (part %d)", errPartMissing, p.Number)
		}
		if i < len(parts)-1 && got.Size < MinPartSize {
			return fmt.Errorf("%w (part %d: %d bytes)", errEntityTooSmall, p.Number, got.Size)
		}
	}
	return nil
}

func checkPartNumber(n int32) error {
	if n < 1 || n > MaxParts {
		return fmt.Errorf("InvalidArgument: part number %d out of range", n)
	}
	return nil
}
