package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vllmd/internal/common/fsutil"
)

// hubModelPrefix marks model repositories in a Hugging Face hub cache.
// models--facebook--opt-125m holds facebook/opt-125m.
const hubModelPrefix = "models--"

// Scanner lists model identifiers found under a directory.
type Scanner interface {
	Scan(dir string) ([]string, error)
}

type hfCacheScanner struct{}

// NewHFCacheScanner returns a Scanner for the Hugging Face hub cache layout.
func NewHFCacheScanner() Scanner { return hfCacheScanner{} }

// Scan returns the sorted model ids of every models--* directory in dir.
// A missing cache is not an error; it simply holds no models.
func (hfCacheScanner) Scan(dir string) ([]string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	models := []string{}
	for _, e := range entries {
		if !e.IsDir() && !isDirLink(filepath.Join(abs, e.Name()), e) {
			continue
		}
		if id, ok := ModelID(e.Name()); ok {
			models = append(models, id)
		}
	}
	sort.Strings(models)
	return models, nil
}

func isDirLink(path string, e os.DirEntry) bool {
	return e.Type()&os.ModeSymlink != 0 && fsutil.IsDir(path)
}

// ModelID converts a hub cache directory name to a model id.
func ModelID(dirName string) (string, bool) {
	rest, ok := strings.CutPrefix(dirName, hubModelPrefix)
	if !ok || rest == "" {
		return "", false
	}
	return strings.ReplaceAll(rest, "--", "/"), true
}

// ScanHFCache scans dir with the default scanner.
func ScanHFCache(dir string) ([]string, error) {
	return NewHFCacheScanner().Scan(dir)
}

// Catalog serves the available-models listing from a fixed cache dir.
type Catalog struct {
	Dir     string
	Scanner Scanner
}

// NewCatalog returns a Catalog over the hub cache at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{Dir: dir, Scanner: NewHFCacheScanner()}
}

// AvailableModels rescans the cache on every call so newly downloaded
// models show up without a restart.
func (c *Catalog) AvailableModels(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Scanner.Scan(c.Dir)
}
