package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilePublisher writes snapshots into a directory.
type FilePublisher struct {
	Dir string
}

func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{Dir: dir}
}

// Publish writes body to Dir/name. Readers never see a partial file.
func (p *FilePublisher) Publish(ctx context.Context, name string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(p.Dir, ".snapshot-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	dest := filepath.Join(p.Dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	return dest, nil
}
