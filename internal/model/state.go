package model

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/afero"
)

const hashChunk = 64 << 10

// ItemState is one side's view of one path. It is always replaced as a
// whole, never patched field by field.
type ItemState struct {
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	MD5      string    `json:"md5"`
	Kind     Kind      `json:"type"`
	Size     int64     `json:"size"`
}

func Absent(path string) ItemState {
	return ItemState{Path: path, Kind: KindEmpty}
}

func FileState(path, md5 string, size int64, modified time.Time) ItemState {
	return ItemState{Path: path, Kind: KindFile, MD5: md5, Size: size, Modified: modified}
}

func DirState(path string, modified time.Time) ItemState {
	return ItemState{Path: path, Kind: KindDir, Modified: modified}
}

// Matches reports whether both sides hold the same thing: the same kind
// and, for files, the same content.
func (s ItemState) Matches(o ItemState) bool {
	if s.Kind != o.Kind {
		return false
	}

	return s.Kind != KindFile || s.MD5 == o.MD5
}

// LocalState stats path on fsys and hashes it when it is a regular file.
// The state is keyed by rel. A missing path yields an absent state.
func LocalState(fsys afero.Fs, path, rel string) (ItemState, error) {
	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Absent(rel), nil
	}
	if err != nil {
		return ItemState{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.IsDir() {
		return DirState(rel, info.ModTime()), nil
	}

	sum, err := HashFile(fsys, path)
	if err != nil {
		return ItemState{}, err
	}

	return FileState(rel, sum, info.Size(), info.ModTime()), nil
}

// HashFile streams path through MD5 in fixed-size chunks.
func HashFile(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func(f afero.File) {
		_ = f.Close()
	}(f)

	h := md5.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashChunk)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
