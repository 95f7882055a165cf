package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
	"whisperflow/internal/app/repository"
)

// Formats accepted for ingest. Anything else is rejected before hashing.
var supportedFormats = map[string]bool{
	"mp3":  true,
	"wav":  true,
	"m4a":  true,
	"mp4":  true,
	"aac":  true,
	"flac": true,
	"opus": true,
}

const hashChunkSize = 64 * 1024

// ContentStore deduplicates uploaded audio by content hash. Identical bytes
// always resolve to the same File record regardless of the original name or
// path; only the first upload of a given hash copies bytes into managed
// storage.
type ContentStore struct {
	root     string
	store    repository.Store
	archiver Archiver
	logger   *zap.Logger
}

// NewContentStore creates a content store rooted at dir. archiver may be nil
// when remote mirroring is disabled.
func NewContentStore(dir string, store repository.Store, archiver Archiver, logger *zap.Logger) (*ContentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, "failed to create storage root")
	}
	return &ContentStore{root: dir, store: store, archiver: archiver, logger: logger}, nil
}

// Resolve ingests the file at path. When bytes with the same hash were seen
// before, the existing File is returned with isNew=false and no copy is
// made. Otherwise the file is copied under the storage root and a new record
// persisted.
func (cs *ContentStore) Resolve(ctx context.Context, path string) (*model.File, bool, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !supportedFormats[format] {
		return nil, false, apperr.Newf(apperr.KindValidation, "unsupported format %q", format)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false, apperr.Wrap(err, apperr.KindIO, "cannot access file")
	}
	if info.Size() == 0 {
		return nil, false, apperr.Validation("file is empty")
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, false, err
	}

	existing, err := cs.store.GetFileByHash(ctx, hash)
	if err == nil {
		cs.logger.Info("duplicate content resolved",
			zap.String("hash", hash[:8]),
			zap.Int64("file_id", existing.ID))
		return existing, false, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, false, err
	}

	managedPath := cs.managedPath(hash, format)
	if err := copyFile(path, managedPath); err != nil {
		return nil, false, err
	}

	file := &model.File{
		ContentHash:  hash,
		OriginalName: filepath.Base(path),
		Path:         managedPath,
		SizeBytes:    info.Size(),
		Format:       format,
	}

	id, err := cs.store.CreateFile(ctx, file)
	if err != nil {
		// A concurrent upload of the same bytes may have won the insert.
		if apperr.IsKind(err, apperr.KindConstraint) {
			os.Remove(managedPath)
			existing, lookupErr := cs.store.GetFileByHash(ctx, hash)
			if lookupErr != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		os.Remove(managedPath)
		return nil, false, err
	}
	file.ID = id

	if cs.archiver != nil {
		cs.archiver.Archive(file)
	}

	cs.logger.Info("content stored",
		zap.String("hash", hash[:8]),
		zap.Int64("file_id", id),
		zap.Int64("size_bytes", info.Size()))
	return file, true, nil
}

// managedPath shards files by hash prefix to keep directory fanout bounded.
func (cs *ContentStore) managedPath(hash, format string) string {
	return filepath.Join(cs.root, hash[:2], fmt.Sprintf("%s.%s", hash, format))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindIO, "cannot open file for hashing")
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", apperr.Wrap(err, apperr.KindIO, "failed to read file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Wrap(err, apperr.KindIO, "failed to create storage directory")
	}

	in, err := os.Open(src)
	if err != nil {
		return apperr.Wrap(err, apperr.KindIO, "cannot open source file")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperr.Wrap(err, apperr.KindIO, "cannot create managed file")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return apperr.Wrap(err, apperr.KindIO, "failed to copy file into storage")
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return apperr.Wrap(err, apperr.KindIO, "failed to flush managed file")
	}
	return nil
}
