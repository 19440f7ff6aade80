package uploads

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidObjectURL = errors.New("invalid object url")

// BuildObjectURL returns {base}/v0/b/{bucket}/o/{escaped path}?alt=media.
// Slashes inside the path are escaped so the object is a single segment.
func BuildObjectURL(base, bucket, path string) string {
	return strings.TrimRight(base, "/") +
		"/v0/b/" + escapeSegment(bucket) +
		"/o/" + escapeSegment(path) +
		"?alt=media"
}

// ParseObjectURL recovers bucket and path from a URL built by BuildObjectURL.
func ParseObjectURL(raw string) (bucket, path string, err error) {
	raw, _, _ = strings.Cut(raw, "?")
	raw, _, _ = strings.Cut(raw, "#")

	_, rest, ok := strings.Cut(raw, "/v0/b/")
	if !ok {
		return "", "", ErrInvalidObjectURL
	}
	encBucket, encPath, ok := strings.Cut(rest, "/o/")
	if !ok || encBucket == "" || encPath == "" {
		return "", "", ErrInvalidObjectURL
	}
	if bucket, err = url.PathUnescape(encBucket); err != nil {
		return "", "", ErrInvalidObjectURL
	}
	if path, err = url.PathUnescape(encPath); err != nil {
		return "", "", ErrInvalidObjectURL
	}
	if strings.Contains(path, "..") {
		return "", "", ErrInvalidObjectURL
	}
	return bucket, path, nil
}

func escapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
