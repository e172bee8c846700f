package gallery

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/renameio"
	"github.com/klauspost/compress/zstd"
)

// ErrCorrupt is returned when the gallery file exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt gallery file")

const fileVersion = 1

// compressedSuffix marks gallery files stored zstd-compressed.
const compressedSuffix = ".zst"

// fileData is the on-disk layout: two parallel sequences of equal length.
type fileData struct {
	Version  int
	Features [][]float32
	UserIDs  []string
}

// ReadFile decodes a gallery file. A missing file is reported with an error
// matching os.ErrNotExist; undecodable content wraps ErrCorrupt.
func ReadFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery file: %w", err)
	}

	var r io.Reader = bytes.NewReader(raw)
	if strings.HasSuffix(path, compressedSuffix) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer dec.Close()
		r = dec
	}

	var data fileData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if data.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data.Version)
	}
	if len(data.Features) != len(data.UserIDs) {
		return nil, fmt.Errorf("%w: %d features for %d user ids", ErrCorrupt, len(data.Features), len(data.UserIDs))
	}

	entries := make([]Entry, len(data.UserIDs))
	for i := range data.UserIDs {
		entries[i] = Entry{UserID: data.UserIDs[i], Embedding: data.Features[i]}
	}
	return entries, nil
}

// WriteFile encodes entries to path, replacing any previous file atomically.
func WriteFile(path string, entries []Entry) error {
	data := fileData{
		Version:  fileVersion,
		Features: make([][]float32, len(entries)),
		UserIDs:  make([]string, len(entries)),
	}
	for i, e := range entries {
		data.Features[i] = e.Embedding
		data.UserIDs[i] = e.UserID
	}

	var buf bytes.Buffer
	if strings.HasSuffix(path, compressedSuffix) {
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if err := gob.NewEncoder(enc).Encode(data); err != nil {
			_ = enc.Close()
			return fmt.Errorf("failed to encode gallery: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to compress gallery: %w", err)
		}
	} else if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}

	if err := renameio.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write gallery file: %w", err)
	}
	return nil
}
