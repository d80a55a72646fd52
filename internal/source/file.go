package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
	"github.com/quy267/spring-drools-integration-sub002/internal/utils"
)

// FileProvider loads GRL rule sources from a directory. The source id is
// the file name without its .grl extension.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider over the given directory.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) path(id string) string {
	return filepath.Join(p.dir, id+".grl")
}

func (p *FileProvider) Fetch(ctx context.Context, id string) ([]byte, Descriptor, error) {
	path := p.path(id)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Descriptor{}, ErrNotFound
		}
		return nil, Descriptor{}, fmt.Errorf("failed to stat rule source %q: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Descriptor{}, fmt.Errorf("failed to read rule source %q: %w", path, err)
	}

	desc := Descriptor{
		ID:          id,
		Fingerprint: utils.Fingerprint(data),
		ModTime:     info.ModTime(),
	}
	logger.WithContext(ctx).Debugf("loaded rule source %v fingerprint %.12v", id, desc.Fingerprint)

	return data, desc, nil
}

func (p *FileProvider) Fingerprint(ctx context.Context, id string) (string, error) {
	data, err := os.ReadFile(p.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read rule source %q: %w", p.path(id), err)
	}
	return utils.Fingerprint(data), nil
}

// List walks the directory and returns a descriptor per .grl file. Files
// that cannot be read are skipped with a warning.
func (p *FileProvider) List(ctx context.Context) ([]Descriptor, error) {
	var descs []Descriptor

	err := filepath.Walk(p.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".grl") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.WithContext(ctx).Warnf("skipping unreadable rule source %v : %v", path, err)
			return nil
		}

		id := strings.TrimSuffix(filepath.Base(path), ".grl")
		descs = append(descs, Descriptor{
			ID:          id,
			Fingerprint: utils.Fingerprint(data),
			ModTime:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rule source directory %q: %w", p.dir, err)
	}

	return descs, nil
}
