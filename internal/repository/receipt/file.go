package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultFilename is the default location of the run receipt.
const DefaultFilename = "pkg-unlocker-receipt.json"

// receiptFilePermissions keeps the receipt readable but not world-writable.
const receiptFilePermissions = 0o644

// Receipt describes one completed pipeline run.
type Receipt struct {
	// SourceURL is the vendor URL the disk image came from.
	SourceURL string `json:"source_url"`
	// OutputPath is where the rebuilt package was written.
	OutputPath string `json:"output_path"`
	// Checksum is the base64-encoded SHA-512 of the rebuilt package.
	Checksum string `json:"checksum"`
	// GatesPatched is the number of version-gate lines rewritten.
	GatesPatched int `json:"gates_patched"`
	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at"`
}

// Repository defines persistence operations for run receipts.
type Repository interface {
	Load(ctx context.Context) (*Receipt, error)
	Save(ctx context.Context, r *Receipt) error
}

// ErrNotFound is returned when no receipt has been written yet.
var ErrNotFound = errors.New("receipt not found")

// FileRepository persists the receipt to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON receipt file.
	path string
	// mu protects concurrent access to the receipt file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = DefaultFilename
	}

	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the receipt from disk.
func (r *FileRepository) Load(_ context.Context) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var receipt Receipt
	if err = json.Unmarshal(contents, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt file: %w", err)
	}

	return &receipt, nil
}

// Save writes the receipt to disk using indented JSON.
func (r *FileRepository) Save(_ context.Context, receipt *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	if err = os.WriteFile(r.path, data, receiptFilePermissions); err != nil {
		return fmt.Errorf("write receipt file: %w", err)
	}

	return nil
}
