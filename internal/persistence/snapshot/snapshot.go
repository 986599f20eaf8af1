package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ErronZrz/rank-poll/internal/core"
)

type Snapshot struct {
	WALOffset int64     `json:"wal_offset"`
	TakenAt   time.Time `json:"taken_at"`
	State     core.Dump `json:"state"`
}

type Store interface {
	Load(path string) (*Snapshot, error)
	Save(path string, s *Snapshot) error
}

type FileStore struct{}

func NewFileStore() *FileStore { return &FileStore{} }

// Load returns os.ErrNotExist when no snapshot has been written yet.
func (fs *FileStore) Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (fs *FileStore) Save(path string, s *Snapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	tmp := path + ".tmp"

	// 1) 写临时文件
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s); err != nil {
		_ = f.Close()
		return err
	}
	// 2) 同步临时文件
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// 3) 原子替换
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	// 4) 同步父目录（部分平台不支持，对错误容忍）
	_ = fsyncDir(filepath.Dir(path))
	return nil
}

func ensureDir(p string) error {
	return os.MkdirAll(filepath.Dir(p), 0o755)
}

func fsyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		// macOS 上对目录 Sync 可能返回 ENOTSUP
		if errors.Is(err, syscall.ENOTSUP) {
			return nil
		}
		return err
	}
	return nil
}
