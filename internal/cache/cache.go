// Package cache stores browser recordings on disk, keyed by a fingerprint
// of everything that influences a recording. Caching is best-effort: an
// unreadable entry is a miss, never an error.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jakopako/scenecaster/internal/log"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/jakopako/scenecaster/internal/utils"
)

const (
	// DefaultMaxAge is the retention window of cache entries.
	DefaultMaxAge = 24 * time.Hour

	manifestFile = "manifest.json"
	videoFile    = "recording.webm"
	tmpPrefix    = ".tmp-"
)

// Manifest is the metadata record of one cache entry.
type Manifest struct {
	Hash          string                  `json:"hash"`
	SceneID       string                  `json:"sceneId"`
	VariantID     string                  `json:"variantId"`
	VideoFilename string                  `json:"videoFilename"`
	DurationMs    int64                   `json:"durationMs"`
	Timestamps    []types.ActionTimestamp `json:"timestamps"`
	// CreatedAt is in unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

func (m *Manifest) Created() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// Entry describes a cache entry for listings.
type Entry struct {
	Manifest
	Path string
	Size int64
	Age  time.Duration
}

// Cache is a directory with one sub directory per fingerprint.
type Cache struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

// New returns a cache rooted at dir. The directory is created on the
// first Store.
func New(dir string) *Cache {
	return &Cache{dir: dir, maxAge: DefaultMaxAge, now: time.Now}
}

func (c *Cache) Dir() string {
	return c.dir
}

type fingerprintInput struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Steps             types.StepList    `json:"steps"`
	SelectorOverrides map[string]string `json:"selectorOverrides,omitempty"`
	CustomCSS         string            `json:"customCss,omitempty"`
	ViewportWidth     int               `json:"viewportWidth"`
	ViewportHeight    int               `json:"viewportHeight"`
}

// Fingerprint returns a stable hash of a browser scene recorded for a
// variant. Only the overrides of that variant and its effective viewport
// are taken into account so that variants sharing a viewport and
// overrides share recordings.
func Fingerprint(scene *types.BrowserScene, variant types.OutputVariant) (string, error) {
	w, h := variant.EffectiveViewport()
	in := fingerprintInput{
		ID:                scene.ID,
		URL:               scene.URL,
		Steps:             scene.Steps,
		SelectorOverrides: scene.SelectorOverrides[variant.ID],
		CustomCSS:         scene.CustomCSS,
		ViewportWidth:     w,
		ViewportHeight:    h,
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("error computing fingerprint of scene %s: %w", scene.ID, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16], nil
}

// Lookup returns the cached recording for hash. It reports false if there
// is no entry, the entry is expired, corrupt or its video is missing.
func (c *Cache) Lookup(ctx context.Context, hash string) (*types.RecordingResult, bool) {
	logger := log.LoggerFromContext(ctx).With(slog.String("hash", hash))
	entryDir := filepath.Join(c.dir, hash)
	m, err := readManifest(entryDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn(fmt.Sprintf("ignoring unreadable cache entry: %v", err))
		}
		return nil, false
	}
	if c.now().Sub(m.Created()) > c.maxAge {
		logger.Debug("cache entry expired")
		return nil, false
	}
	videoPath := filepath.Join(entryDir, m.VideoFilename)
	if _, err := os.Stat(videoPath); err != nil {
		logger.Debug("cache entry has no video")
		return nil, false
	}
	return &types.RecordingResult{
		SceneID:    m.SceneID,
		VariantID:  m.VariantID,
		VideoPath:  videoPath,
		DurationMs: m.DurationMs,
		Timestamps: m.Timestamps,
	}, true
}

// Store copies the recorded video and its metadata into the cache. The
// entry is assembled in a temporary directory and renamed into place, so
// readers never see a partial entry. The last write wins.
func (c *Cache) Store(ctx context.Context, hash string, r *types.RecordingResult) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	tmp := filepath.Join(c.dir, tmpPrefix+uuid.NewString())
	if err := os.Mkdir(tmp, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := utils.CopyFile(r.VideoPath, filepath.Join(tmp, videoFile)); err != nil {
		return fmt.Errorf("error copying recording to cache: %w", err)
	}
	m := Manifest{
		Hash:          hash,
		SceneID:       r.SceneID,
		VariantID:     r.VariantID,
		VideoFilename: videoFile,
		DurationMs:    r.DurationMs,
		Timestamps:    r.Timestamps,
		CreatedAt:     c.now().UnixMilli(),
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestFile), b, 0644); err != nil {
		return err
	}

	entryDir := filepath.Join(c.dir, hash)
	// another writer may rename its entry in between, so try twice
	for range 2 {
		if err = os.RemoveAll(entryDir); err != nil {
			return err
		}
		if err = os.Rename(tmp, entryDir); err == nil {
			log.LoggerFromContext(ctx).Debug("stored recording in cache", slog.String("hash", hash), slog.String("scene", r.SceneID))
			return nil
		}
	}
	return fmt.Errorf("error moving cache entry into place: %w", err)
}

// Prune removes all entries older than maxAge and all entries without a
// readable manifest. It returns the number of removed entries. A missing
// cache directory is not an error.
func (c *Cache) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	logger := log.LoggerFromContext(ctx)
	dirs, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			continue
		}
		entryDir := filepath.Join(c.dir, d.Name())
		m, err := readManifest(entryDir)
		if err == nil && c.now().Sub(m.Created()) <= maxAge {
			continue
		}
		if err := os.RemoveAll(entryDir); err != nil {
			logger.Warn(fmt.Sprintf("could not remove cache entry %s: %v", d.Name(), err))
			continue
		}
		pruned++
	}
	return pruned, nil
}

// List returns all readable entries, sorted by directory name.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	dirs, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			continue
		}
		entryDir := filepath.Join(c.dir, d.Name())
		m, err := readManifest(entryDir)
		if err != nil {
			log.LoggerFromContext(ctx).Debug(fmt.Sprintf("skipping cache entry %s: %v", d.Name(), err))
			continue
		}
		e := Entry{Manifest: *m, Path: entryDir, Age: c.now().Sub(m.Created())}
		if fi, err := os.Stat(filepath.Join(entryDir, m.VideoFilename)); err == nil {
			e.Size = fi.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readManifest(entryDir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(entryDir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.VideoFilename == "" || strings.ContainsAny(m.VideoFilename, `/\`) {
		return nil, fmt.Errorf("invalid video filename %q", m.VideoFilename)
	}
	return &m, nil
}
