// Package catalog loads the song catalog from a file or URL.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/verte-zerg/tunequiz/internal/model"
)

// ErrCatalogLoad is returned when the catalog source is unreachable, malformed or empty.
var ErrCatalogLoad = errors.New("catalog load failed")

const (
	fetchAttempts = 3
	fetchDelay    = 500 * time.Millisecond
	fetchTimeout  = 30 * time.Second
)

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected catalog status: %s", e.status)
}

// Load reads the catalog from a local path or an http(s) URL.
// On failure it returns an empty catalog and an error wrapping ErrCatalogLoad.
func Load(ctx context.Context, source string) ([]model.Song, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return []model.Song{}, fmt.Errorf("%w: no catalog source configured", ErrCatalogLoad)
	}
	var (
		data    []byte
		baseDir string
		err     error
	)
	if isURL(source) {
		data, err = fetch(ctx, source)
	} else {
		var path string
		path, err = homedir.Expand(source)
		if err == nil {
			baseDir = filepath.Dir(path)
			data, err = os.ReadFile(path)
		}
	}
	if err != nil {
		return []model.Song{}, fmt.Errorf("%w: %v", ErrCatalogLoad, err)
	}
	songs, err := Parse(data)
	if err != nil {
		return []model.Song{}, fmt.Errorf("%w: %v", ErrCatalogLoad, err)
	}
	if baseDir != "" {
		ResolvePaths(songs, baseDir)
	}
	return songs, nil
}

// Parse decodes and validates a JSON song array.
func Parse(data []byte) ([]model.Song, error) {
	var songs []model.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]struct{}, len(songs))
	for i, song := range songs {
		if strings.TrimSpace(song.ID) == "" {
			return nil, fmt.Errorf("song %d has no id", i)
		}
		if strings.TrimSpace(song.Title) == "" {
			return nil, fmt.Errorf("song %q has no title", song.ID)
		}
		if _, ok := seen[song.ID]; ok {
			return nil, fmt.Errorf("duplicate song id %q", song.ID)
		}
		seen[song.ID] = struct{}{}
	}
	return songs, nil
}

// ResolvePaths makes relative file and cover paths absolute against baseDir.
func ResolvePaths(songs []model.Song, baseDir string) {
	for i := range songs {
		songs[i].FilePath = resolve(baseDir, songs[i].FilePath)
		songs[i].AlbumCoverPath = resolve(baseDir, songs[i].AlbumCoverPath)
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || isURL(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := &http.Client{Timeout: fetchTimeout}
	var body []byte
	err = retry.Do(
		func() error {
			var err error
			body, err = fetchOnce(client, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var serr *statusError
			if errors.As(err, &serr) {
				return serr.code/100 == 5
			}
			return !errors.Is(err, context.Canceled)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func fetchOnce(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog body: %w", err)
	}
	return data, nil
}

// Write stores songs as an indented JSON array, replacing path atomically.
func Write(path string, songs []model.Song) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog dir: %w", err)
	}
	data, err := json.MarshalIndent(songs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "songs-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmpFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}
