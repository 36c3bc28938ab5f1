package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// File persists each key as its own file below a base location. The base
// may be a local directory or any URL understood by afs.
type File struct {
	fs      afs.Service
	baseURL string
}

// NewFile creates a file storage rooted at baseURL.
func NewFile(baseURL string) *File {
	return &File{
		fs:      afs.New(),
		baseURL: baseURL,
	}
}

var plainFileKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// itemURL maps a key to its file. Keys that are not plain file names are
// base64 encoded, so a key containing a path separator cannot address a file
// outside the base.
func (f *File) itemURL(key string) string {
	name := key
	if !plainFileKey.MatchString(key) || strings.HasPrefix(key, ".") {
		name = "b64-" + base64.RawURLEncoding.EncodeToString([]byte(key))
	}
	return url.Join(f.baseURL, name+".json")
}

func (f *File) GetItem(ctx context.Context, key string) (string, bool, error) {
	location := f.itemURL(key)

	exists, err := f.fs.Exists(ctx, location)
	if err != nil {
		return "", false, fmt.Errorf("checking %s: %w", location, err)
	}
	if !exists {
		return "", false, nil
	}

	data, err := f.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", location, err)
	}

	return string(data), true, nil
}

func (f *File) SetItem(ctx context.Context, key, value string) error {
	location := f.itemURL(key)

	if err := f.fs.Upload(ctx, location, 0o600, strings.NewReader(value)); err != nil {
		return fmt.Errorf("writing %s: %w", location, err)
	}

	return nil
}

func (f *File) RemoveItem(ctx context.Context, key string) error {
	location := f.itemURL(key)

	exists, err := f.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("checking %s: %w", location, err)
	}
	if !exists {
		return nil
	}

	if err := f.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("removing %s: %w", location, err)
	}

	return nil
}
