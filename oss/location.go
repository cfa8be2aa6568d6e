package oss

import (
	"fmt"
	"strings"
)

// Location addresses a single object as bucket + key.
type Location struct {
	Bucket string
	Key    string
}

// ParseLocation splits s on its first '/'. Everything after that slash,
// including further slashes, is the key.
//
//	ParseLocation("bucket/a/b/c") // {Bucket: "bucket", Key: "a/b/c"}
func ParseLocation(s string) (Location, error) {
	bucket, key, ok := strings.Cut(s, "/")
	if !ok {
		return Location{}, fmt.Errorf("invalid location %q: missing '/' between bucket and key", s)
	}
	if bucket == "" {
		return Location{}, fmt.Errorf("invalid location %q: empty bucket", s)
	}
	if key == "" {
		return Location{}, fmt.Errorf("invalid location %q: empty key", s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// MustParseLocation is like ParseLocation but panics on error.
// Intended for tests and static configuration.
func MustParseLocation(s string) Location {
	loc, err := ParseLocation(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// ParseLocations parses every entry of list, stopping at the first bad one.
func ParseLocations(list []string) ([]Location, error) {
	locs := make([]Location, 0, len(list))
	for i, s := range list {
		loc, err := ParseLocation(s)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// String returns the "bucket/key" form.
func (l Location) String() string {
	return l.Bucket + "/" + l.Key
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool {
	return l.Bucket == "" && l.Key == ""
}
