package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidURL is returned when an image URL cannot be mapped back to a key.
var ErrInvalidURL = errors.New("invalid image url")

// File is an image payload received from a client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Image identifies an uploaded object and the public URL it is served from.
type Image struct {
	ID  string
	URL string
}

// ImageStore persists listing images in a remote object store.
type ImageStore interface {
	// Upload stores file under folder and returns its key and public URL.
	Upload(ctx context.Context, file File, folder string) (Image, error)
	// Delete removes the object with the given key.
	Delete(ctx context.Context, id string) error
}

// PublicID recovers the object key from a public image URL: the last path
// segment up to its first dot, prefixed with folder.
func PublicID(rawURL, folder string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "", fmt.Errorf("%w: %q has no object name", ErrInvalidURL, rawURL)
	}
	name, _, _ := strings.Cut(base, ".")
	if name == "" {
		return "", fmt.Errorf("%w: %q has no object name", ErrInvalidURL, rawURL)
	}
	return joinKey(folder, name), nil
}

// newObjectKey returns a fresh key under folder. Keys carry no extension so
// that PublicID(url) yields the key itself.
func newObjectKey(folder string) string {
	return joinKey(folder, uuid.NewString())
}

func joinKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func objectURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
