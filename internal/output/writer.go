// Package output appends records to a run's JSON array file.
//
// Every append is a read-modify-write of the whole file, written to a
// temporary sibling and renamed into place, so the file is valid JSON after
// each successful call. Cost is O(n) in records already written.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"jobfeed/internal/models"

	"charm.land/log/v2"
)

var (
	ErrPermission = errors.New("permission denied")
	ErrIO         = errors.New("i/o error")
	ErrEncode     = errors.New("encode error")
	ErrUnexpected = errors.New("unexpected error")
)

var errCorrupt = errors.New("existing file is not a JSON array")

// File is the output dataset of one run.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Append adds rec to the file and returns the number of records it now holds.
func (f *File) Append(rec models.Record) (int, error) {
	return Append(rec, f.path)
}

// Filename builds <dir>/<prefix>_<YYYYMMDD_HHMMSS>.json.
func Filename(dir, prefix string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", prefix, t.Format("20060102_150405")))
}

// Append adds rec to the JSON array stored at path. A missing or empty file
// starts a new array; a corrupt one is logged and replaced. Failures are
// wrapped with ErrPermission, ErrIO, ErrEncode or ErrUnexpected and mean
// the record was not persisted.
func Append(rec models.Record, path string) (int, error) {
	title := recordLabel(rec)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, logFailure(classify(err), path, title)
	}

	items, err := readArray(path)
	if errors.Is(err, errCorrupt) {
		log.Error("⚠️ JSON decode error, starting fresh", "file", path, "record", title, "err", err)
		items = nil
	} else if err != nil {
		return 0, logFailure(classify(err), path, title)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, logFailure(fmt.Errorf("%w: %w", ErrEncode, err), path, title)
	}
	items = append(items, raw)

	data, err := encodeArray(items)
	if err != nil {
		return 0, logFailure(fmt.Errorf("%w: %w", ErrEncode, err), path, title)
	}

	if err := writeAtomic(path, data); err != nil {
		return 0, logFailure(classify(err), path, title)
	}

	log.Info("💾 Saved record", "record", title, "file", path, "total", len(items))
	return len(items), nil
}

func readArray(path string) ([]json.RawMessage, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return items, nil
}

func encodeArray(items []json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func classify(err error) error {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case errors.As(err, &pathErr), errors.As(err, &linkErr):
		return fmt.Errorf("%w: %w", ErrIO, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
}

func logFailure(err error, path, title string) error {
	switch {
	case errors.Is(err, ErrPermission):
		log.Error("❌ Permission denied saving record", "record", title, "file", path, "err", err)
	case errors.Is(err, ErrIO):
		log.Error("❌ IO error saving record", "record", title, "file", path, "err", err)
	case errors.Is(err, ErrEncode):
		log.Error("❌ Could not encode record", "record", title, "file", path, "err", err)
	default:
		log.Error("❌ Unexpected error saving record", "record", title, "file", path, "err", err)
	}
	return err
}

func recordLabel(rec models.Record) string {
	if t := rec.Get(models.FieldTitle); t != "" {
		if c := rec.Get(models.FieldCompany); c != "" {
			return t + " @ " + c
		}
		return t
	}
	if p := rec.Get(models.FieldPersonName); p != "" {
		return p
	}
	return "Unknown"
}
