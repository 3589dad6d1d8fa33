// Package store 瓦片文件存储: 原子写入、存在检查与删除.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Rename retry defaults.
const (
	RenameRetries = 32
	RenameBackoff = 10 * time.Microsecond
)

// DirPerm / FilePerm 新建目录与瓦片文件的权限
const (
	DirPerm  = 0o755
	FilePerm = 0o644
)

// createTemp is replaced in tests to inject write failures.
var createTemp = os.CreateTemp

// Writer 瓦片写入器.
//
// A destination path is never observed half written: content goes to a
// uniquely named sibling temp file first and is then renamed into place.
// When several writers race on one path the last rename wins and the file
// holds exactly one writer's bytes.
type Writer struct {
	Retries int
	Backoff time.Duration

	log logrus.FieldLogger
}

// NewWriter log may be nil.
func NewWriter(log logrus.FieldLogger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{
		Retries: RenameRetries,
		Backoff: RenameBackoff,
		log:     log,
	}
}

// WriteFile writes data to path and reports the first failure.
//
// On a write failure the temp file is removed and path is left untouched.
// When every rename attempt fails the temp file stays behind.
func (w *Writer) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	// MkdirAll tolerates a concurrent writer creating the same parents
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := createTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := tmp.Write(data)
	if err == nil && n < len(data) {
		err = fmt.Errorf("short write %d of %d bytes", n, len(data))
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	// CreateTemp opens with 0600
	if err := os.Chmod(tmpName, FilePerm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	retries := w.Retries
	if retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		if err = os.Rename(tmpName, path); err == nil {
			return nil
		}
		time.Sleep(w.Backoff)
	}
	return fmt.Errorf("rename %s after %d attempts: %w", tmpName, retries, err)
}

// Store 尽力写入: 失败只记日志, 返回是否成功
func (w *Writer) Store(path string, data []byte) bool {
	if err := w.WriteFile(path, data); err != nil {
		w.log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Error("store tile failed")
		return false
	}
	return true
}

// Exists 文件是否存在 (目录不算)
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Remove deletes path. removed is false when the file was already gone;
// any other failure is returned.
func Remove(path string) (removed bool, err error) {
	err = os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
