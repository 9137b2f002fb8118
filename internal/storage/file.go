package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// FileName is the name of the pointer record inside the data directory.
const FileName = "ban_data.json"

// FileStore keeps the pointer record as a small JSON document on local disk.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates a store rooted at dataDir, creating the directory if needed.
func NewFileStore(dataDir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileStore{
		path:   filepath.Join(dataDir, FileName),
		logger: logger.Named("file_store"),
	}, nil
}

// Path returns the location of the pointer record.
func (s *FileStore) Path() string {
	return s.path
}

// BanListMessageID reads the record. A missing file is the valid initial state.
func (s *FileStore) BanListMessageID(_ context.Context) (snowflake.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pointer record: %w", err)
	}

	var doc document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if doc.BanListMessageID == "" {
		return 0, nil
	}

	id, err := snowflake.Parse(doc.BanListMessageID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return id, nil
}

// SetBanListMessageID writes the record atomically through a temporary file and rename.
func (s *FileStore) SetBanListMessageID(_ context.Context, messageID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := sonic.Marshal(document{BanListMessageID: messageID.String()})
	if err != nil {
		return fmt.Errorf("failed to encode pointer record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary record: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary record: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary record: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace pointer record: %w", err)
	}

	s.logger.Debug("Saved ban list message ID", zap.Uint64("messageID", uint64(messageID)))
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
