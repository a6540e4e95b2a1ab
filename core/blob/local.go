package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docstack-tech/docstack/core/logger"
)

// Local is the local filesystem implementation of the blob Driver
type Local struct {
	baseFolder string
}

// NewLocal returns a new Local driver rooted at baseFolder.
func NewLocal(baseFolder string) (*Local, error) {
	if baseFolder == "" {
		return nil, fmt.Errorf("base folder must not be empty")
	}
	if err := os.MkdirAll(baseFolder, 0700); err != nil {
		return nil, err
	}
	logger.Default().Debugln("local blob storage enabled:", baseFolder)
	return &Local{baseFolder: baseFolder}, nil
}

func (l *Local) path(key string) (string, error) {
	if strings.Contains(key, "..") {
		return "", fmt.Errorf(".. not authorized in keys")
	}
	return filepath.Join(l.baseFolder, key, "file"), nil
}

// Put stores the blob under key.
func (l *Local) Put(ctx context.Context, key string, reader io.Reader) error {
	filePath, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return err
	}
	dstFile, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer dstFile.Close()
	_, err = io.Copy(dstFile, reader)
	return err
}

// Get writes the blob stored under key to writer.
func (l *Local) Get(ctx context.Context, key string, writer io.Writer) error {
	filePath, err := l.path(key)
	if err != nil {
		return err
	}
	srcFile, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer srcFile.Close()
	_, err = io.Copy(writer, srcFile)
	return err
}

// Delete deletes the key file
func (l *Local) Delete(ctx context.Context, key string) error {
	filePath, err := l.path(key)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(filePath))
}

// DeleteAllWithPrefix deletes all keys starting with prefix
func (l *Local) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	if strings.Contains(prefix, "..") {
		return fmt.Errorf(".. not authorized in keys")
	}
	return os.RemoveAll(filepath.Join(l.baseFolder, prefix))
}
