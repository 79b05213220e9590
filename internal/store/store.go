// Package store provides the durable backing for the speech cache: audio
// artifacts as files in an object directory, plus a bbolt index mapping
// content keys to their storage locations.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"

	"github.com/studify-ai/studify-speech/speech"
)

const (
	indexFile  = "index.db"
	objectsDir = "objects"

	// compressMin is the smallest artifact worth compressing. Below this the
	// zstd frame overhead dominates.
	compressMin = 1024
)

var bucketEntries = []byte("entries")

// ErrNotFound is returned by Object for an unknown storage path.
var ErrNotFound = errors.New("store: object not found")

// Options configures a Store.
type Options struct {
	// Compression enables transparent zstd compression of stored blobs.
	// Artifacts are decompressed on read; the compressed form is an internal
	// detail and never leaks into entry metadata.
	Compression bool

	// CompressionLevel is the zstd level (defaults to 3).
	CompressionLevel int

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Store implements speech.Store on the local filesystem.
//
// Writes are overwrite-by-key and never partial: the blob lands first via
// temp-file-and-rename, then the index row. If the index write fails after
// the blob write succeeded, the entry is simply absent on the next lookup
// and a retry re-derives identical content.
type Store struct {
	dir     string
	db      *bolt.DB
	logger  *log.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open creates or opens a Store rooted at dir.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, objectsDir), 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, indexFile), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open index: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	s := &Store{
		dir:    dir,
		db:     db,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}

	if opts.Compression {
		level := opts.CompressionLevel
		if level == 0 {
			level = 3
		}
		s.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: create zstd encoder: %w", err)
		}
		s.decoder, err = zstd.NewReader(nil)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: create zstd decoder: %w", err)
		}
	}

	return s, nil
}

// record is the persisted index row. It carries the public entry plus
// storage-internal detail.
type record struct {
	speech.Entry
	Compressed bool `json:"compressed"`
}

// Lookup returns the entry for key, or nil if no entry exists. Index read
// failures surface as a storage failure, not as a miss.
func (s *Store) Lookup(key string) (*speech.Entry, error) {
	var rec *record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if v == nil {
			return nil
		}
		rec = &record{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read index for %q: %v", speech.ErrStorageFailure, key, err)
	}
	if rec == nil {
		return nil, nil
	}
	entry := rec.Entry
	return &entry, nil
}

// Put writes data to the object area at "<key>.<ext>" and records the index
// row. Overwriting an existing key is safe: content for a key is identical
// by construction, so no locking is needed across racing writers.
func (s *Store) Put(key, voiceID string, data []byte, mimeType string) (*speech.Entry, error) {
	name := key + "." + speech.ExtensionForMIME(mimeType)

	blob := data
	compressed := false
	if s.encoder != nil && len(data) > compressMin {
		if c := s.encoder.EncodeAll(data, nil); len(c) < len(data) {
			blob = c
			compressed = true
		}
	}

	objPath := s.objectPath(name, compressed)
	if err := writeFileAtomic(objPath, blob); err != nil {
		return nil, fmt.Errorf("%w: write object %q: %v", speech.ErrStorageFailure, name, err)
	}
	if compressed {
		// An uncompressed blob from an earlier write must not shadow the one
		// just written.
		_ = os.Remove(s.objectPath(name, false))
	} else {
		_ = os.Remove(s.objectPath(name, true))
	}

	rec := record{
		Entry: speech.Entry{
			ContentKey:  key,
			VoiceID:     voiceID,
			StoragePath: name,
			MimeType:    mimeType,
			Size:        int64(len(data)),
			CreatedAt:   time.Now().UTC(),
		},
		Compressed: compressed,
	}
	buf, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal entry %q: %v", speech.ErrStorageFailure, key, err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), buf)
	}); err != nil {
		return nil, fmt.Errorf("%w: write index for %q: %v", speech.ErrStorageFailure, key, err)
	}

	s.logger.Debug("stored audio artifact",
		"key", key,
		"path", name,
		"size", humanize.Bytes(uint64(len(data))),
		"compressed", compressed,
	)
	entry := rec.Entry
	return &entry, nil
}

// Object returns the decoded bytes and mime type for a storage path as
// produced by Put. Unknown paths return ErrNotFound.
func (s *Store) Object(storagePath string) ([]byte, string, error) {
	key, _, ok := strings.Cut(storagePath, ".")
	if !ok {
		return nil, "", ErrNotFound
	}

	var rec *record
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if v == nil {
			return nil
		}
		rec = &record{}
		return json.Unmarshal(v, rec)
	}); err != nil {
		return nil, "", fmt.Errorf("%w: read index for %q: %v", speech.ErrStorageFailure, key, err)
	}
	if rec == nil || rec.StoragePath != storagePath {
		return nil, "", ErrNotFound
	}

	data, err := os.ReadFile(s.objectPath(storagePath, rec.Compressed))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read object %q: %v", speech.ErrStorageFailure, storagePath, err)
	}
	if rec.Compressed {
		data, err = s.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, "", fmt.Errorf("%w: decompress object %q: %v", speech.ErrStorageFailure, storagePath, err)
		}
	}
	return data, rec.MimeType, nil
}

// Len returns the number of cache entries in the index.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: index stats: %v", speech.ErrStorageFailure, err)
	}
	return n, nil
}

// Close closes the index database.
func (s *Store) Close() error {
	if s.encoder != nil {
		_ = s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	return s.db.Close()
}

func (s *Store) objectPath(name string, compressed bool) string {
	p := filepath.Join(s.dir, objectsDir, name)
	if compressed {
		p += ".zst"
	}
	return p
}

// writeFileAtomic writes data via a temp file and rename so readers never
// observe a partial object.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(tmp)
		return werr
	}
	if cerr != nil {
		_ = os.Remove(tmp)
		return cerr
	}
	return os.Rename(tmp, path)
}

var _ speech.Store = (*Store)(nil)
