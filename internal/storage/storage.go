// Package storage deletes binary assets (videos, thumbnails, avatars) that
// posts and users reference. Uploads happen elsewhere; the integrity layer
// only needs best-effort removal when the owning record goes away.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrForeignAsset is returned for references outside the configured bucket.
var ErrForeignAsset = errors.New("asset is not stored in this bucket")

// AssetStore removes a stored object by its reference string. Deleting an
// object that no longer exists is not an error.
type AssetStore interface {
	Delete(ctx context.Context, ref string) error
}

// Noop is used when no object storage is configured.
type Noop struct{}

func (Noop) Delete(context.Context, string) error { return nil }

// ObjectRef is a parsed bucket/object pair.
type ObjectRef struct {
	Bucket string
	Object string
}

// ParseRef understands gs://bucket/object,
// https://storage.googleapis.com/bucket/object and bare object names, which
// resolve against defaultBucket.
func ParseRef(ref, defaultBucket string) (ObjectRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ObjectRef{}, errors.New("empty asset reference")
	}

	if !strings.Contains(ref, "://") {
		if defaultBucket == "" {
			return ObjectRef{}, fmt.Errorf("bare reference %q without a default bucket", ref)
		}
		return ObjectRef{Bucket: defaultBucket, Object: strings.TrimPrefix(ref, "/")}, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("parse asset reference: %w", err)
	}

	var bucket, object string
	switch {
	case u.Scheme == "gs":
		bucket, object = u.Host, strings.TrimPrefix(u.Path, "/")
	case (u.Scheme == "https" || u.Scheme == "http") && u.Host == "storage.googleapis.com":
		bucket, object, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	default:
		return ObjectRef{}, fmt.Errorf("%w: %s", ErrForeignAsset, ref)
	}
	if bucket == "" || object == "" {
		return ObjectRef{}, fmt.Errorf("incomplete asset reference %q", ref)
	}
	return ObjectRef{Bucket: bucket, Object: object}, nil
}
