package benchmark

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FrameFile is an encoded frame read from disk.
type FrameFile struct {
	// Path is the path to the file.
	Path string
	// Data is the encoded image.
	Data []byte
	// Index is the frame number parsed from names such as "frame-42.jpg", or -1.
	Index int
}

// frameExts are the extensions LoadFrames reads.
var frameExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// LoadFrames reads every image file from a directory.
//
// Numbered frames come first in frame order, followed by the remaining files by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []FrameFile: The frames.
//   - error: An error if the directory cannot be read or holds no images.
func LoadFrames(dir string) ([]FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read frames directory")
	}

	var frames []FrameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !frameExts[ext] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read frame %s", path)
		}
		frames = append(frames, FrameFile{
			Path:  path,
			Data:  data,
			Index: frameIndex(entry.Name()),
		})
	}
	if len(frames) == 0 {
		return nil, errors.Errorf("no frames in %s", dir)
	}

	sort.SliceStable(frames, func(i, j int) bool {
		a, b := frames[i], frames[j]
		switch {
		case a.Index >= 0 && b.Index >= 0:
			return a.Index < b.Index
		case a.Index >= 0 || b.Index >= 0:
			return a.Index >= 0
		default:
			return a.Path < b.Path
		}
	})
	return frames, nil
}

func frameIndex(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(name, filepath.Ext(name)), "frame-"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
