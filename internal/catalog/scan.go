package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/tunequiz/internal/model"
)

// songNamespace seeds stable song ids derived from relative file paths.
var songNamespace = uuid.MustParse("5b0c3a4e-8f4d-4f53-9a8e-2f1d7c6b9e10")

var coverNames = []string{"cover.jpg", "cover.png", "folder.jpg", "folder.png", "front.jpg"}

// ScanOptions controls directory scanning.
type ScanOptions struct {
	// Concurrency bounds the number of files whose tags are read at once.
	Concurrency int
}

// Scan walks dir for MP3 files and builds a catalog from their ID3 tags.
// File and cover paths are relative to dir.
func Scan(ctx context.Context, dir string, opts ScanOptions) ([]model.Song, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".mp3") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(files)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 8
	}
	songs := make([]model.Song, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			song, err := songFromFile(dir, path)
			if err != nil {
				return err
			}
			songs[i] = song
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return songs, nil
}

func songFromFile(root, path string) (model.Song, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return model.Song{}, err
	}
	rel = filepath.ToSlash(rel)

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return model.Song{}, fmt.Errorf("failed to read tags of %s: %w", rel, err)
	}
	if t := strings.TrimSpace(tag.Title()); t != "" {
		title = t
	}
	album := strings.TrimSpace(tag.Album())
	if cerr := tag.Close(); cerr != nil {
		// Best-effort close of a read-only tag.
		_ = cerr
	}

	return model.Song{
		ID:             uuid.NewSHA1(songNamespace, []byte(rel)).String(),
		Title:          title,
		Album:          album,
		FilePath:       rel,
		AlbumCoverPath: findCover(root, filepath.Dir(path)),
	}, nil
}

func findCover(root, dir string) string {
	for _, name := range coverNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			rel, err := filepath.Rel(root, candidate)
			if err != nil {
				return ""
			}
			return filepath.ToSlash(rel)
		}
	}
	return ""
}
