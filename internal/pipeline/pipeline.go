// Package pipeline drives a whole run: it records the browser scenes of
// every requested variant (or takes them from the cache), builds the
// composition and hands it to the renderer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jakopako/scenecaster/internal/cache"
	"github.com/jakopako/scenecaster/internal/composition"
	"github.com/jakopako/scenecaster/internal/log"
	"github.com/jakopako/scenecaster/internal/recorder"
	"github.com/jakopako/scenecaster/internal/render"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/jakopako/scenecaster/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Recorder records a single browser scene for a variant.
type Recorder interface {
	Record(ctx context.Context, scene *types.BrowserScene, variant types.OutputVariant, opts recorder.Options) (*types.RecordingResult, error)
}

// Cache stores recordings between runs.
type Cache interface {
	Lookup(ctx context.Context, hash string) (*types.RecordingResult, bool)
	Store(ctx context.Context, hash string, r *types.RecordingResult) error
}

// Options are given per run.
type Options struct {
	OutputDir        string
	Variants         []string
	Scenes           []string
	Headless         bool
	DisableCache     bool
	DisableThumbnail bool
	StorageStatePath string
	// ThumbnailScene and ThumbnailFrame pick the thumbnail frame. A nil
	// frame selects about one second into the chosen scene, or into the
	// first title scene if no scene is given.
	ThumbnailScene string
	ThumbnailFrame *int
}

// Result describes what was produced for one variant.
type Result struct {
	VariantID     string
	VideoPath     string
	ThumbnailPath string
	Scenes        int
	TotalFrames   int
	FPS           int
	CacheHits     int
	Recorded      int
}

type Pipeline struct {
	recorder    Recorder
	cache       Cache
	renderer    render.Renderer
	workDir     string
	concurrency int
	recOpts     recorder.Options
}

// New creates a pipeline. The cache may be nil, which disables caching.
// recOpts holds the recording options that are the same for every scene,
// eg global css and the highlight color.
func New(rec Recorder, c Cache, r render.Renderer, workDir string, concurrency int, recOpts recorder.Options) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		recorder:    rec,
		cache:       c,
		renderer:    r,
		workDir:     workDir,
		concurrency: concurrency,
		recOpts:     recOpts,
	}
}

// Run renders every selected variant of script in order and returns one
// result per variant. The first failing variant aborts the run and no
// results are returned. Outputs of earlier variants stay on disk.
func (p *Pipeline) Run(ctx context.Context, script *types.Script, opts Options) ([]Result, error) {
	variants, err := filterVariants(ctx, script.Output.Variants, opts.Variants)
	if err != nil {
		return nil, err
	}
	scenes, err := filterScenes(script.Scenes, opts.Scenes)
	if err != nil {
		return nil, err
	}
	filtered := *script
	filtered.Scenes = scenes

	results := make([]Result, 0, len(variants))
	for _, v := range variants {
		logger := log.LoggerFromContext(ctx).With(slog.String("variant", v.ID))
		res, err := p.runVariant(log.ContextWithLogger(ctx, logger), &filtered, v, opts)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.ID, err)
		}
		logger.Info(fmt.Sprintf("finished variant, written to %s", res.VideoPath))
		results = append(results, *res)
	}
	return results, nil
}

func (p *Pipeline) runVariant(ctx context.Context, script *types.Script, variant types.OutputVariant, opts Options) (*Result, error) {
	logger := log.LoggerFromContext(ctx)
	res := &Result{VariantID: variant.ID, Scenes: len(script.Scenes), FPS: script.Output.FPS}

	recordings, err := p.recordAll(ctx, script, variant, opts, res)
	if err != nil {
		return nil, err
	}

	stagingDir := filepath.Join(p.workDir, "staging", utils.SanitizeFilename(script.Meta.Title)+"-"+utils.SanitizeFilename(variant.ID))
	staged, brand, err := stage(ctx, stagingDir, script, recordings)
	if err != nil {
		return nil, err
	}
	withBrand := *script
	withBrand.Brand = brand

	data, err := composition.Build(&withBrand, variant, staged)
	if err != nil {
		return nil, err
	}
	res.TotalFrames = data.TotalFrames

	videoExt, stillExt := p.renderer.Extensions()
	outputPath := filepath.Join(opts.OutputDir, OutputPath(script.Meta.Title, variant.ID, opts.Scenes, videoExt))
	logger.Info(fmt.Sprintf("rendering %d frames at %d fps", data.TotalFrames, data.FPS))
	if res.VideoPath, err = p.renderer.Render(ctx, data, outputPath, stagingDir); err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	if !opts.DisableThumbnail {
		requested := -1
		if opts.ThumbnailFrame != nil {
			requested = *opts.ThumbnailFrame
		}
		frame, err := composition.ThumbnailFrame(data, opts.ThumbnailScene, requested)
		if err != nil {
			return nil, err
		}
		thumbPath := strings.TrimSuffix(outputPath, videoExt) + "-thumbnail" + stillExt
		if res.ThumbnailPath, err = p.renderer.RenderStill(ctx, data, frame, thumbPath, stagingDir); err != nil {
			return nil, fmt.Errorf("thumbnail failed: %w", err)
		}
	}
	return res, nil
}

// recordAll returns a recording per browser scene of script, keyed by
// scene id. Independent scenes are recorded concurrently.
func (p *Pipeline) recordAll(ctx context.Context, script *types.Script, variant types.OutputVariant, opts Options, res *Result) (map[string]*types.RecordingResult, error) {
	var mu sync.Mutex
	recordings := map[string]*types.RecordingResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, s := range script.Scenes {
		scene, ok := s.(*types.BrowserScene)
		if !ok {
			continue
		}
		g.Go(func() error {
			rec, hit, err := p.recording(gctx, scene, variant, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			recordings[scene.ID] = rec
			if hit {
				res.CacheHits++
			} else {
				res.Recorded++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recordings, nil
}

func (p *Pipeline) recording(ctx context.Context, scene *types.BrowserScene, variant types.OutputVariant, opts Options) (*types.RecordingResult, bool, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("scene", scene.ID))
	useCache := p.cache != nil && !opts.DisableCache

	var hash string
	if useCache {
		var err error
		if hash, err = cache.Fingerprint(scene, variant); err != nil {
			logger.Warn(fmt.Sprintf("could not fingerprint scene, not using the cache: %v", err))
			useCache = false
		} else if rec, ok := p.cache.Lookup(ctx, hash); ok {
			logger.Info("using cached recording", slog.String("hash", hash))
			return rec, true, nil
		}
	}

	ro := p.recOpts
	ro.Headless = opts.Headless
	ro.StorageStatePath = opts.StorageStatePath
	ro.WorkDir = p.workDir
	rec, err := p.recorder.Record(ctx, scene, variant, ro)
	if err != nil {
		return nil, false, err
	}
	if useCache {
		if err := p.cache.Store(ctx, hash, rec); err != nil {
			logger.Warn(fmt.Sprintf("could not store recording in cache: %v", err))
		}
	}
	return rec, false, nil
}

// stage copies the recordings and the brand logo into stagingDir. The
// returned recordings and brand reference the staged files by their name
// relative to stagingDir.
func stage(ctx context.Context, stagingDir string, script *types.Script, recordings map[string]*types.RecordingResult) (map[string]*types.RecordingResult, types.Brand, error) {
	logger := log.LoggerFromContext(ctx)
	brand := script.Brand
	if err := os.RemoveAll(stagingDir); err != nil {
		return nil, brand, err
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, brand, err
	}

	staged := make(map[string]*types.RecordingResult, len(recordings))
	for i, s := range script.Scenes {
		rec, ok := recordings[s.SceneID()]
		if !ok {
			continue
		}
		name := stagedName(i, s.SceneID(), filepath.Ext(rec.VideoPath))
		if err := utils.CopyFile(rec.VideoPath, filepath.Join(stagingDir, name)); err != nil {
			return nil, brand, fmt.Errorf("error staging recording of scene %s: %w", s.SceneID(), err)
		}
		c := *rec
		c.VideoPath = name
		staged[s.SceneID()] = &c
	}

	if brand.Logo != "" {
		name := "logo" + filepath.Ext(brand.Logo)
		if err := utils.CopyFile(brand.Logo, filepath.Join(stagingDir, name)); err != nil {
			logger.Warn(fmt.Sprintf("could not stage logo %s: %v", brand.Logo, err))
			brand.Logo = ""
		} else {
			brand.Logo = name
		}
	}
	return staged, brand, nil
}

// stagedName is unique per scene position, ids that sanitize to the same
// name do not collide.
func stagedName(index int, sceneID, ext string) string {
	name := fmt.Sprintf("scene-%02d", index)
	if id := utils.SanitizeFilename(sceneID); id != "" {
		name += "-" + id
	}
	return name + ext
}

// OutputPath returns the file name of the rendered video. It is derived
// from the script title, the variant and the scene filter if any.
func OutputPath(title, variantID string, scenes []string, ext string) string {
	name := utils.SanitizeFilename(title)
	if name == "" {
		name = "video"
	}
	name += "-" + utils.SanitizeFilename(variantID)
	if len(scenes) > 0 {
		parts := make([]string, len(scenes))
		for i, s := range scenes {
			parts[i] = utils.SanitizeFilename(s)
		}
		name += "-" + strings.Join(parts, "-")
	}
	return name + ext
}

func filterVariants(ctx context.Context, variants []types.OutputVariant, ids []string) ([]types.OutputVariant, error) {
	if len(ids) == 0 {
		return variants, nil
	}
	available := make([]string, len(variants))
	for i, v := range variants {
		available[i] = v.ID
	}
	var selected []types.OutputVariant
	for _, v := range variants {
		if slices.Contains(ids, v.ID) {
			selected = append(selected, v)
		}
	}
	unknown := utils.Difference(ids, available)
	if len(selected) == 0 {
		return nil, &FilterError{Kind: "variant", Unknown: unknown, Available: available}
	}
	if len(unknown) > 0 {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("ignoring unknown variants %s", strings.Join(unknown, ", ")))
	}
	return selected, nil
}

func filterScenes(scenes types.SceneList, ids []string) (types.SceneList, error) {
	if len(ids) == 0 {
		return scenes, nil
	}
	available := make([]string, len(scenes))
	for i, s := range scenes {
		available[i] = s.SceneID()
	}
	if unknown := utils.Difference(ids, available); len(unknown) > 0 {
		return nil, &FilterError{Kind: "scene", Unknown: unknown, Available: available}
	}
	selected := types.SceneList{}
	for _, s := range scenes {
		if slices.Contains(ids, s.SceneID()) {
			selected = append(selected, s)
		}
	}
	return selected, nil
}
