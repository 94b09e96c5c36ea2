package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Saver receives downloaded files: the save-file action of the host.
type Saver interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
}

// DirSaver writes downloads into a directory.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(ctx context.Context, name, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	// Names come from the server for some downloads; keep them in dir.
	target := filepath.Join(dir, filepath.Base(name))
	tmp := target + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}
