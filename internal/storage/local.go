package storage

import (
	"context"
	"fmt"
	"os"
)

type LocalProvider struct {
	path string
}

func NewLocalProvider(path string) *LocalProvider {
	return &LocalProvider{path: path}
}

func (p *LocalProvider) Fetch(ctx context.Context) (string, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return "", fmt.Errorf("dataset file %s not found: %w", p.path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("dataset path %s is a directory", p.path)
	}
	return p.path, nil
}
