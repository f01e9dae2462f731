package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tamperwatch/internal/fileutil"
)

// Picker selects the most recently created image in a folder.
type Picker struct {
	// Extensions lists accepted extensions in lower case with a leading dot.
	Extensions []string
	// CreatedAt returns the creation time used for ordering. Defaults to
	// fileutil.CreatedAt.
	CreatedAt func(path string, info os.FileInfo) time.Time
}

// NewPicker returns a picker for the given extensions.
func NewPicker(extensions []string) *Picker {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &Picker{Extensions: exts, CreatedAt: fileutil.CreatedAt}
}

type candidate struct {
	path    string
	created time.Time
}

// Newest returns the image in dir with the latest creation time. Ties are
// broken by name so the choice is stable. Subdirectories (such as the
// evidence folder) are not searched.
func (p *Picker) Newest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}

	createdAt := p.CreatedAt
	if createdAt == nil {
		createdAt = fileutil.CreatedAt
	}

	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !p.accepts(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		path := filepath.Join(dir, entry.Name())
		candidates = append(candidates, candidate{path: path, created: createdAt(path, info)})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoImage, dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].created.Equal(candidates[j].created) {
			return candidates[i].created.Before(candidates[j].created)
		}
		return candidates[i].path < candidates[j].path
	})
	return candidates[len(candidates)-1].path, nil
}

func (p *Picker) accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
