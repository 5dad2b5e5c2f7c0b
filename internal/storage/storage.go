// Package storage keeps a copy of every uploaded study.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists raw upload bytes and returns where they went.
type Store interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// SafeName reduces an untrusted client filename to a single path element.
func SafeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0 || r < 0x20:
			return '_'
		default:
			return r
		}
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return "upload"
	}
	return name
}

// objectName prefixes a date directory and a uuid so uploads never collide.
func objectName(filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s_%s", now.UTC().Format("2006-01-02"), uuid.NewString(), SafeName(filename))
}

type LocalStore struct {
	dir string
	now func() time.Time
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: abs, now: time.Now}, nil
}

func (s *LocalStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.FromSlash(objectName(filename, s.now())))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return "file://" + filepath.ToSlash(path), nil
}

// Discard drops uploads. Used when persistence is switched off.
type Discard struct{}

func (Discard) Save(context.Context, string, []byte) (string, error) { return "", nil }
