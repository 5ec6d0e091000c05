package frame

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// DirSurface replays a recorded screen share stored as a directory of PNG or
// JPEG images. Files are played in lexical order and each successful Draw
// consumes one file.
type DirSurface struct {
	mu         sync.Mutex
	files      []string
	next       int
	current    image.Image
	fullscreen bool
}

// OpenDir lists the image files in dir.
func OpenDir(dir string) (*DirSurface, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open frame directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("open frame directory: no png or jpeg files in %s", dir)
	}
	slices.Sort(files)
	return &DirSurface{files: files}, nil
}

// SetFullscreen toggles the reported fullscreen state.
func (d *DirSurface) SetFullscreen(on bool) {
	d.mu.Lock()
	d.fullscreen = on
	d.mu.Unlock()
}

// Len returns the number of frames in the recording.
func (d *DirSurface) Len() int { return len(d.files) }

// Remaining returns the number of frames not yet drawn.
func (d *DirSurface) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files) - d.next
}

func (d *DirSurface) ReadyState() ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.files) {
		return HaveNothing
	}
	if err := d.loadLocked(); err != nil {
		// Undecodable files are skipped.
		d.next++
		return HaveMetadata
	}
	return HaveEnoughData
}

func (d *DirSurface) Dimensions() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.files) || d.loadLocked() != nil {
		return 0, 0
	}
	b := d.current.Bounds()
	return b.Dx(), b.Dy()
}

func (d *DirSurface) Fullscreen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fullscreen
}

func (d *DirSurface) Draw(ctx context.Context, width, height int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.files) {
		return nil, ErrInvalidState
	}
	if err := d.loadLocked(); err != nil {
		d.next++
		return nil, err
	}
	img := d.current
	d.current = nil
	d.next++

	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return Scale(img, width, height), nil
}

func (d *DirSurface) loadLocked() error {
	if d.current != nil {
		return nil
	}
	img, err := imaging.Open(d.files[d.next])
	if err != nil {
		return fmt.Errorf("decode frame %s: %w", filepath.Base(d.files[d.next]), err)
	}
	d.current = img
	return nil
}
