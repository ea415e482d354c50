// Package visuals chooses background footage and plans how it is cut to fit narration.
package visuals

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoBackgrounds means the background directory holds no usable clips.
var ErrNoBackgrounds = errors.New("no background clips found")

var clipExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
	".m4v":  true,
}

// ListClips returns the background clips in dir, sorted by name so the same
// directory always yields the same order. Hidden files are skipped.
func ListClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoBackgrounds, dir)
		}
		return nil, fmt.Errorf("read backgrounds dir: %w", err)
	}

	var clips []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		if clipExtensions[strings.ToLower(filepath.Ext(name))] {
			clips = append(clips, filepath.Join(dir, name))
		}
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoBackgrounds, dir)
	}
	sort.Strings(clips)
	return clips, nil
}
