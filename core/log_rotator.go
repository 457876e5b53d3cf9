package core

import (
	"fmt"
	"os"
	"sync"
)

// LogRotator 带大小上限的日志文件写入器
// 超过上限时把当前文件改名为 <name>.old（只保留一份备份）后重新打开
type LogRotator struct {
	filename string
	maxSize  int64 // bytes, <=0 不轮转

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewLogRotator maxSizeMB 单位为 MB
func NewLogRotator(filename string, maxSizeMB int) (*LogRotator, error) {
	r := &LogRotator{
		filename: filename,
		maxSize:  int64(maxSizeMB) << 20,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// BackupName 轮转后备份文件的路径
func (r *LogRotator) BackupName() string {
	return r.filename + ".old"
}

func (r *LogRotator) open() error {
	f, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *LogRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}

	if r.maxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			// 轮转失败继续写当前文件
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *LogRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	_ = os.Remove(r.BackupName())
	renameErr := os.Rename(r.filename, r.BackupName())

	// 无论改名是否成功都要重新打开，保证后续写入有目标
	if err := r.open(); err != nil {
		return err
	}
	return renameErr
}

func (r *LogRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
