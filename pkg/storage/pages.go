package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PageFilePattern names rendered slide images so lexicographic and numeric
// page order coincide.
const PageFilePattern = "page-%03d.png"

// ErrPageNotFound is returned when a document or one of its pages has no
// artifact on disk.
var ErrPageNotFound = fmt.Errorf("page artifact not found")

// PageStore owns the on-disk layout of rendered slide images: one directory
// per material, one PNG per page.
type PageStore struct {
	baseDir string
}

// NewPageStore ensures the base directory exists and returns a handle.
func NewPageStore(baseDir string) (*PageStore, error) {
	if baseDir == "" {
		baseDir = "./uploads/materials"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create materials directory: %w", err)
	}
	return &PageStore{baseDir: baseDir}, nil
}

// DocumentDir returns the artifact directory for a material.
func (s *PageStore) DocumentDir(materialID string) string {
	return filepath.Join(s.baseDir, materialID)
}

// Material ids are uuids minted by the service, but the store still refuses
// anything that could escape its base directory.
func validID(materialID string) bool {
	return materialID != "" &&
		!strings.ContainsAny(materialID, `/\`) &&
		materialID != "." && materialID != ".."
}

// ResolvePage maps (material, 1-based page number) to the path of its PNG.
// Out-of-range or non-positive page numbers yield ErrPageNotFound, never an
// error of another kind.
func (s *PageStore) ResolvePage(materialID string, pageNumber int) (string, error) {
	if !validID(materialID) || pageNumber < 1 {
		return "", ErrPageNotFound
	}
	path := filepath.Join(s.DocumentDir(materialID), fmt.Sprintf(PageFilePattern, pageNumber))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrPageNotFound
		}
		return "", fmt.Errorf("stat page artifact: %w", err)
	}
	if info.IsDir() {
		return "", ErrPageNotFound
	}
	return path, nil
}

// Open returns a read-only handle for a page artifact.
func (s *PageStore) Open(materialID string, pageNumber int) (*os.File, error) {
	path, err := s.ResolvePage(materialID, pageNumber)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("open page artifact: %w", err)
	}
	return file, nil
}

// DeleteDocument removes every artifact for a material. Deleting a material
// that has no artifacts is a no-op.
func (s *PageStore) DeleteDocument(materialID string) error {
	if !validID(materialID) {
		return nil
	}
	if err := os.RemoveAll(s.DocumentDir(materialID)); err != nil {
		return fmt.Errorf("delete page artifacts: %w", err)
	}
	return nil
}
