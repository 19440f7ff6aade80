package uploads

import (
	"context"
	"errors"
	"io"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the managed bucket behind the upload layer.
type ObjectStore interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
	URL(ctx context.Context, path string) (string, error)
	Remove(ctx context.Context, path string) error
}

// SupabaseStore keeps objects in one Supabase Storage bucket. The client has
// no context support; callers bound it by aborting the body reader.
type SupabaseStore struct {
	client *storage.Client
	bucket string
}

func NewSupabaseStore(baseURL, key, bucket string) *SupabaseStore {
	client := storage.NewClient(strings.TrimRight(baseURL, "/")+"/storage/v1", key, nil)
	return &SupabaseStore{client: client, bucket: bucket}
}

func (s *SupabaseStore) Bucket() string {
	return s.bucket
}

func (s *SupabaseStore) Put(_ context.Context, path string, body io.Reader, contentType string) error {
	upsert := true
	opts := storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}
	_, err := s.client.UploadFile(s.bucket, path, body, opts)
	return err
}

func (s *SupabaseStore) URL(_ context.Context, path string) (string, error) {
	resp := s.client.GetPublicUrl(s.bucket, path)
	if resp.SignedURL == "" {
		return "", ErrObjectNotFound
	}
	return resp.SignedURL, nil
}

func (s *SupabaseStore) Remove(_ context.Context, path string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{path})
	if err != nil && isNotFound(err) {
		return ErrObjectNotFound
	}
	return err
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
