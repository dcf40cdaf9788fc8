package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmorgan81/unigen/internal/log"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrBucketNotConfigured = errors.New("S3_BUCKET not set in environment")

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Uploader stores data and returns a URL the caller can read it back from.
type Uploader interface {
	Upload(context.Context, UploadParams) (string, error)
}

// MakeKey returns "<prefix>/<random hex>.<extension>". Keys are unique with
// overwhelming probability; collisions are not detected.
func MakeKey(prefix, extension string) string {
	return fmt.Sprintf("%s/%s.%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""), extension)
}

// EncodeMetadata escapes values so they survive as HTTP header values.
func EncodeMetadata(m map[string]string) map[string]string {
	return lo.MapValues(m, func(v string, _ string) string {
		return url.QueryEscape(v)
	})
}

// DecodeMetadata reverses EncodeMetadata. Values that fail to unescape are
// returned as stored.
func DecodeMetadata(m map[string]string) map[string]string {
	return lo.MapValues(m, func(v string, _ string) string {
		if d, err := url.QueryUnescape(v); err == nil {
			return d
		}
		return v
	})
}

// FileUploader writes objects under Dir, for running without a bucket.
type FileUploader struct {
	Dir string
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	path := filepath.Join(u.Dir, filepath.FromSlash(params.Name))
	log.Info("writing", "file", path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, params.Data, 0600); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
