package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/studify-ai/studify-speech/speech"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutLookupRoundtrip(t *testing.T) {
	s := openTestStore(t, Options{})

	key := speech.DeriveKey("Hello world", "default")
	data := []byte("not really audio but close enough")

	entry, err := s.Put(key, "default", data, "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if entry.ContentKey != key {
		t.Errorf("entry key = %q, want %q", entry.ContentKey, key)
	}
	if entry.StoragePath != key+".wav" {
		t.Errorf("storage path = %q, want %q", entry.StoragePath, key+".wav")
	}
	if entry.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", entry.Size, len(data))
	}

	got, err := s.Lookup(key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil {
		t.Fatal("lookup returned a miss for a stored key")
	}
	if got.StoragePath != entry.StoragePath || got.MimeType != "audio/wav" {
		t.Errorf("lookup entry = %+v, want %+v", got, entry)
	}
}

func TestLookupMissIsNilNil(t *testing.T) {
	s := openTestStore(t, Options{})

	entry, err := s.Lookup(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("lookup miss returned error: %v", err)
	}
	if entry != nil {
		t.Errorf("lookup miss returned entry %+v", entry)
	}
}

func TestObjectRoundtrip(t *testing.T) {
	s := openTestStore(t, Options{})

	key := speech.DeriveKey("object roundtrip", "default")
	data := []byte{0x52, 0x49, 0x46, 0x46, 0x01, 0x02, 0x03, 0x04}
	entry, err := s.Put(key, "default", data, "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, mimeType, err := s.Object(entry.StoragePath)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("object bytes differ: got %d bytes, want %d", len(got), len(data))
	}
	if mimeType != "audio/wav" {
		t.Errorf("mime type = %q, want audio/wav", mimeType)
	}
}

func TestObjectUnknownPath(t *testing.T) {
	s := openTestStore(t, Options{})

	for _, path := range []string{
		strings.Repeat("cd", 32) + ".wav",
		"no-extension",
		"",
	} {
		if _, _, err := s.Object(path); !errors.Is(err, ErrNotFound) {
			t.Errorf("Object(%q) error = %v, want ErrNotFound", path, err)
		}
	}
}

func TestOverwriteSameKey(t *testing.T) {
	s := openTestStore(t, Options{})

	key := speech.DeriveKey("overwrite", "default")
	if _, err := s.Put(key, "default", []byte("first"), "audio/wav"); err != nil {
		t.Fatalf("first put: %v", err)
	}
	entry, err := s.Put(key, "default", []byte("second write"), "audio/wav")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, _, err := s.Object(entry.StoragePath)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if string(got) != "second write" {
		t.Errorf("object = %q, want the later write", got)
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Errorf("index has %d entries after overwrite, want 1", n)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := speech.DeriveKey("durable", "default")
	data := []byte("artifact that must survive a restart")

	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Put(key, "default", data, "audio/mpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	entry, err := s.Lookup(key)
	if err != nil {
		t.Fatalf("lookup after reopen: %v", err)
	}
	if entry == nil {
		t.Fatal("entry lost across reopen")
	}
	got, mimeType, err := s.Object(entry.StoragePath)
	if err != nil {
		t.Fatalf("object after reopen: %v", err)
	}
	if !bytes.Equal(got, data) || mimeType != "audio/mpeg" {
		t.Errorf("object after reopen = (%d bytes, %q), want (%d bytes, audio/mpeg)", len(got), mimeType, len(data))
	}
}

func TestCompressionRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{Compression: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	// Highly repetitive and above the compression floor, so the compressed
	// form is guaranteed smaller.
	data := bytes.Repeat([]byte("silence "), 1024)
	key := speech.DeriveKey("compressible", "default")
	entry, err := s.Put(key, "default", data, "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	// Size always reflects the logical artifact, not the on-disk form.
	if entry.Size != int64(len(data)) {
		t.Errorf("entry size = %d, want %d", entry.Size, len(data))
	}
	onDisk := filepath.Join(dir, objectsDir, entry.StoragePath+".zst")
	fi, err := os.Stat(onDisk)
	if err != nil {
		t.Fatalf("compressed object missing: %v", err)
	}
	if fi.Size() >= int64(len(data)) {
		t.Errorf("on-disk size %d not smaller than input %d", fi.Size(), len(data))
	}

	got, _, err := s.Object(entry.StoragePath)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("decompressed object differs from input")
	}
}

func TestSmallObjectsStayUncompressed(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{Compression: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	data := []byte("tiny")
	key := speech.DeriveKey("tiny", "default")
	entry, err := s.Put(key, "default", data, "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, objectsDir, entry.StoragePath)); err != nil {
		t.Errorf("plain object missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, objectsDir, entry.StoragePath+".zst")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("compressed form exists for a small object: %v", err)
	}

	got, _, err := s.Object(entry.StoragePath)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("small object differs from input")
	}
}

func TestExtensionFollowsMimeType(t *testing.T) {
	s := openTestStore(t, Options{})

	tests := []struct {
		mimeType string
		wantExt  string
	}{
		{"audio/wav", "wav"},
		{"audio/mpeg", "mp3"},
		{"application/octet-stream", "bin"},
	}
	for _, tt := range tests {
		key := speech.DeriveKey("ext "+tt.mimeType, "default")
		entry, err := s.Put(key, "default", []byte("x"), tt.mimeType)
		if err != nil {
			t.Fatalf("put %q: %v", tt.mimeType, err)
		}
		if want := key + "." + tt.wantExt; entry.StoragePath != want {
			t.Errorf("storage path for %q = %q, want %q", tt.mimeType, entry.StoragePath, want)
		}
	}
}

func TestNoPartialObjectsInObjectDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	key := speech.DeriveKey("atomic", "default")
	if _, err := s.Put(key, "default", bytes.Repeat([]byte{0xAA}, 4096), "audio/wav"); err != nil {
		t.Fatalf("put: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, objectsDir))
	if err != nil {
		t.Fatalf("read object dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %q left behind", e.Name())
		}
	}
}
