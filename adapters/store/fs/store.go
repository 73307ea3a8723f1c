package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-report-export/export"
)

// Store keeps report artifacts under Root. Each artifact gets a JSON sidecar
// holding its metadata.
type Store struct {
	Root string
	Now  func() time.Time
}

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

type sidecar struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"created_at"`
}

// Put writes an artifact atomically.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta export.ArtifactMeta) (export.ArtifactRef, error) {
	pathOnDisk, err := s.prepare(ctx, key)
	if err != nil {
		return export.ArtifactRef{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindPersistence, "create artifact dir", err)
	}

	size, err := writeAtomic(dir, ".report-*", pathOnDisk, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindPersistence, fmt.Sprintf("write artifact %q", key), err)
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(pathOnDisk)
	}

	if err := s.writeMeta(pathOnDisk, meta); err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindPersistence, fmt.Sprintf("write metadata %q", key), err)
	}

	return export.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact back with its metadata.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, export.ArtifactMeta, error) {
	pathOnDisk, err := s.prepare(ctx, key)
	if err != nil {
		return nil, export.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, export.ArtifactMeta{}, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, export.ArtifactMeta{}, export.NewError(export.KindPersistence, fmt.Sprintf("open artifact %q", key), err)
	}

	meta := s.readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(pathOnDisk)
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}

	return file, meta, nil
}

func (s *Store) prepare(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", export.NewError(export.KindInternal, "store is nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Root == "" {
		return "", export.NewError(export.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return "", export.NewError(export.KindValidation, "artifact key is required", nil)
	}
	return s.resolvePath(key)
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", export.NewError(export.KindValidation, "invalid artifact key", nil)
	}
	if strings.HasSuffix(rel, ".meta.json") {
		return "", export.NewError(export.KindValidation, "artifact key uses reserved suffix", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", export.NewError(export.KindPersistence, "resolve store root", err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", export.NewError(export.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) writeMeta(pathOnDisk string, meta export.ArtifactMeta) error {
	payload, err := json.Marshal(sidecar{
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Filename:    meta.Filename,
		CreatedAt:   meta.CreatedAt.UTC(),
	})
	if err != nil {
		return err
	}
	_, err = writeAtomic(filepath.Dir(pathOnDisk), ".meta-*", metaPath(pathOnDisk), func(w io.Writer) (int64, error) {
		n, err := w.Write(payload)
		return int64(n), err
	})
	return err
}

func (s *Store) readMeta(pathOnDisk string) export.ArtifactMeta {
	data, err := os.ReadFile(metaPath(pathOnDisk))
	if err != nil {
		return export.ArtifactMeta{}
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return export.ArtifactMeta{}
	}
	return export.ArtifactMeta{
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Filename:    meta.Filename,
		CreatedAt:   meta.CreatedAt,
	}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// writeAtomic writes through a temp file in dir and renames it onto target.
func writeAtomic(dir, pattern, target string, write func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := write(tmp)
	if err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, err
	}
	return size, nil
}

func metaPath(pathOnDisk string) string {
	return pathOnDisk + ".meta.json"
}
