/*
scenecaster turns a yaml script into a product demo video. Browser scenes
are recorded with a real chrome, title cards and captions are composed
around them and the result is rendered per output variant.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/jakopako/scenecaster/internal/browser"
	"github.com/jakopako/scenecaster/internal/cache"
	"github.com/jakopako/scenecaster/internal/config"
	"github.com/jakopako/scenecaster/internal/log"
	"github.com/jakopako/scenecaster/internal/pipeline"
	"github.com/jakopako/scenecaster/internal/recorder"
	"github.com/jakopako/scenecaster/internal/render"
	"github.com/jakopako/scenecaster/internal/script"
	"github.com/jakopako/scenecaster/internal/types"
	"github.com/jakopako/scenecaster/internal/utils"
	"github.com/miekg/king"
	"github.com/olekukonko/tablewriter"
)

var version = "dev"

const name = "scenecaster"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are available to every command.
type Globals struct {
	Config string `short:"c" long:"config" help:"The location of the scenecaster settings file." default:"${default_config}"`
	Debug  bool   `short:"d" long:"debug" help:"Set log level to 'debug' and keep intermediate artifacts."`
}

type cli struct {
	Globals
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`

	Completion CompletionCommand `cmd:"" help:"Generate autocompletion file."`

	Render   RenderCmd   `cmd:"" help:"Record and render the video of a script."`
	Validate ValidateCmd `cmd:"" help:"Validate a script without recording anything."`
	Init     InitCmd     `cmd:"" help:"Write a starter script."`
	List     ListCmd     `cmd:"" help:"List the scenes and variants of a script."`
	Cache    CacheCmd    `cmd:"" help:"Inspect and prune the recording cache."`
}

type ShellType string

const (
	BASH ShellType = "bash"
	ZSH  ShellType = "zsh"
	FISH ShellType = "fish"
)

var shellTypes = []string{string(BASH), string(ZSH), string(FISH)}

type CompletionCommand struct {
	Shell ShellType `short:"s" help:"The shell that you want to create the autocompletion file for." required:"" enum:"bash,zsh,fish"`
}

func (acc *CompletionCommand) Run() error {
	cli := &cli{}
	parser := kong.Must(cli, kong.Name(name), kong.Vars{"version": version, "default_config": config.DefaultPath})

	switch acc.Shell {
	case BASH:
		b := &king.Bash{}
		b.Completion(parser.Model.Node, name)
		return b.Write()
	case ZSH:
		z := &king.Zsh{}
		z.Completion(parser.Model.Node, name)
		return z.Write()
	case FISH:
		f := &king.Fish{}
		f.Completion(parser.Model.Node, name)
		return f.Write()
	default:
		// should not happen due to enum constraint
		return fmt.Errorf("shell type not supported: %s. Must be one of [%s].", acc.Shell, strings.Join(shellTypes, ", "))
	}
}

type RenderCmd struct {
	Script         string   `arg:"" help:"The script to render." type:"existingfile" completion:"<file>"`
	Output         string   `short:"o" default:"./output" help:"The directory the videos are written to." type:"path" completion:"<directory>"`
	Variant        []string `short:"V" help:"Only render the given variants." completion:"scenecaster list \"$script\" --variants -C 2>/dev/null"`
	Scene          []string `short:"s" help:"Only render the given scenes." completion:"scenecaster list \"$script\" -C 2>/dev/null"`
	NoHeadless     bool     `long:"no-headless" help:"Show the browser window while recording."`
	NoCache        bool     `long:"no-cache" help:"Record every browser scene even if a cached recording exists."`
	NoThumbnail    bool     `long:"no-thumbnail" help:"Do not render a thumbnail."`
	Session        string   `long:"session" help:"A storage state file (cookies and local storage) loaded before recording." type:"existingfile" completion:"<file>"`
	ThumbnailScene string   `long:"thumbnail-scene" help:"The scene the thumbnail is taken from." completion:"scenecaster list \"$script\" -C 2>/dev/null"`
	ThumbnailFrame int      `long:"thumbnail-frame" default:"-1" help:"The frame of the thumbnail, relative to the thumbnail scene if given. Negative values select about one second into the scene."`
	Renderer       string   `short:"r" help:"Override the configured renderer (ffmpeg or json)."`
	Concurrency    int      `short:"j" help:"The number of browser scenes recorded at the same time."`
}

func (rc *RenderCmd) Run(g *Globals) error {
	cfg, err := config.NewConfig(g.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if rc.Renderer != "" {
		cfg.Render.Type = rc.Renderer
	}
	if rc.Concurrency > 0 {
		cfg.Concurrency = rc.Concurrency
	}

	s, err := script.ParseFile(rc.Script)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}

	renderer, err := render.NewRenderer(&cfg.Render)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	rec := recorder.New(recorder.LaunchBrowser, browser.Options{
		ChromePath:        cfg.Browser.ChromePath,
		UserAgent:         cfg.Browser.UserAgent,
		VideoCodec:        cfg.Browser.VideoCodec,
		FFmpegPath:        cfg.Render.FFmpegPath,
		NavigationTimeout: cfg.Browser.NavigationTimeout(),
		ActionTimeout:     cfg.Browser.ActionTimeout(),
	})
	p := pipeline.New(rec, cache.New(cfg.CacheDir), renderer, cfg.WorkDir, cfg.Concurrency, recorder.Options{
		SlowMo:         cfg.Browser.SlowMo(),
		GlobalCSS:      cfg.Browser.GlobalCSS,
		HighlightColor: cfg.Browser.HighlightColor,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var thumbnailFrame *int
	if rc.ThumbnailFrame >= 0 {
		thumbnailFrame = &rc.ThumbnailFrame
	}

	start := time.Now()
	results, err := p.Run(ctx, s, pipeline.Options{
		OutputDir:        rc.Output,
		Variants:         rc.Variant,
		Scenes:           rc.Scene,
		Headless:         !(rc.NoHeadless || cfg.Browser.Visible),
		DisableCache:     rc.NoCache,
		DisableThumbnail: rc.NoThumbnail,
		StorageStatePath: rc.Session,
		ThumbnailScene:   rc.ThumbnailScene,
		ThumbnailFrame:   thumbnailFrame,
	})
	if err != nil {
		var recErr *recorder.RecordingError
		if errors.As(err, &recErr) {
			slog.Error("recording failed")
			fmt.Fprintln(os.Stderr, recErr.Error())
		} else {
			slog.Error(fmt.Sprintf("%v", err))
		}
		return err
	}
	printResults(results)
	slog.Info(fmt.Sprintf("rendered %d variants in %s", len(results), time.Since(start).Round(time.Millisecond)))
	return nil
}

func printResults(results []pipeline.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Variant", "Scenes", "Length", "Recorded", "Cached", "Size", "Output"})
	for _, r := range results {
		size := "-"
		if fi, err := os.Stat(r.VideoPath); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		length := time.Duration(float64(r.TotalFrames) / float64(max(r.FPS, 1)) * float64(time.Second))
		table.Append([]string{
			r.VariantID,
			strconv.Itoa(r.Scenes),
			length.Round(time.Millisecond).String(),
			strconv.Itoa(r.Recorded),
			strconv.Itoa(r.CacheHits),
			size,
			r.VideoPath,
		})
	}
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	table.SetBorder(false)
	table.Render()
}

type ValidateCmd struct {
	Script string `arg:"" help:"The script to validate." type:"existingfile" completion:"<file>"`
}

func (vc *ValidateCmd) Run() error {
	s, err := script.ParseFile(vc.Script)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	browserScenes := 0
	for _, sc := range s.Scenes {
		if sc.Type() == types.SceneTypeBrowser {
			browserScenes++
		}
	}
	fmt.Printf("%s is valid\n", vc.Script)
	fmt.Printf("  title:    %s\n", s.Meta.Title)
	fmt.Printf("  scenes:   %d (%d browser, %d title)\n", len(s.Scenes), browserScenes, len(s.Scenes)-browserScenes)
	fmt.Printf("  variants: %d\n", len(s.Output.Variants))
	fmt.Printf("  fps:      %d\n", s.Output.FPS)
	return nil
}

type InitCmd struct {
	Name  string `short:"n" default:"my-demo" help:"The name of the new script."`
	Dir   string `short:"o" default:"." help:"The directory the script is written to." type:"path"`
	Force bool   `short:"f" help:"Overwrite an existing script."`
}

func (ic *InitCmd) Run() error {
	path := filepath.Join(ic.Dir, script.TemplateFilename(ic.Name))
	if _, err := os.Stat(path); err == nil && !ic.Force {
		err := fmt.Errorf("file %s already exists, use --force to overwrite it", path)
		slog.Error(err.Error())
		return err
	}
	if err := os.MkdirAll(ic.Dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, script.Template(ic.Name), 0644); err != nil {
		slog.Error(fmt.Sprintf("error writing to file: %v", err))
		return err
	}
	slog.Info(fmt.Sprintf("successfully wrote script to file %s", path))
	return nil
}

type ListCmd struct {
	Script     string `arg:"" help:"The script to list." type:"path" completion:"<file>"`
	Variants   bool   `long:"variants" help:"List the output variants instead of the scenes."`
	Completion bool   `short:"C" help:"If set to true, the output will be formatted for autocompletion scripts and errors will not be printed."`
}

func (lc *ListCmd) Run() error {
	s, err := script.ParseFile(lc.Script)
	if err != nil {
		if lc.Completion {
			// in completion mode, we just return an empty output on error
			return nil
		}
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}

	if lc.Completion {
		if lc.Variants {
			for _, v := range s.Output.Variants {
				fmt.Println(v.ID)
			}
			return nil
		}
		for _, sc := range s.Scenes {
			fmt.Println(sc.SceneID())
		}
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetBorder(false)
	if lc.Variants {
		table.SetHeader([]string{"Variant", "Size", "Aspect ratio", "Viewport"})
		for _, v := range s.Output.Variants {
			w, h := v.EffectiveViewport()
			table.Append([]string{v.ID, fmt.Sprintf("%dx%d", v.Width, v.Height), v.AspectRatio, fmt.Sprintf("%dx%d", w, h)})
		}
	} else {
		table.SetHeader([]string{"Scene", "Type", "Details"})
		for _, sc := range s.Scenes {
			switch scene := sc.(type) {
			case *types.TitleScene:
				table.Append([]string{scene.ID, string(scene.Type()), fmt.Sprintf("%q (%.1fs)", utils.ShortenString(scene.Heading, 40), scene.Duration)})
			case *types.BrowserScene:
				table.Append([]string{scene.ID, string(scene.Type()), fmt.Sprintf("%s (%d steps)", utils.ShortenString(scene.URL, 60), len(scene.Steps))})
			}
		}
	}
	table.Render()
	return nil
}

type CacheCmd struct {
	Prune CachePruneCmd `cmd:"" help:"Remove expired recordings from the cache."`
	List  CacheListCmd  `cmd:"" help:"List the cached recordings."`
}

type CachePruneCmd struct {
	MaxAge time.Duration `long:"max-age" default:"24h" help:"Recordings older than this are removed."`
}

func (pc *CachePruneCmd) Run(g *Globals) error {
	cfg, err := config.NewConfig(g.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	n, err := cache.New(cfg.CacheDir).Prune(context.Background(), pc.MaxAge)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	slog.Info(fmt.Sprintf("removed %d cached recordings from %s", n, cfg.CacheDir))
	return nil
}

type CacheListCmd struct{}

func (lc *CacheListCmd) Run(g *Globals) error {
	cfg, err := config.NewConfig(g.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	entries, err := cache.New(cfg.CacheDir).List(context.Background())
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Hash", "Scene", "Variant", "Length", "Size", "Created"})
	var total int64
	for _, e := range entries {
		row := []string{
			e.Hash,
			e.SceneID,
			e.VariantID,
			(time.Duration(e.DurationMs) * time.Millisecond).String(),
			humanize.Bytes(uint64(e.Size)),
			humanize.Time(e.Created()),
		}
		if e.Age > cache.DefaultMaxAge {
			table.Rich(row, []tablewriter.Colors{{tablewriter.Normal, tablewriter.FgYellowColor}, {}, {}, {}, {}, {tablewriter.Normal, tablewriter.FgYellowColor}})
		} else {
			table.Append(row)
		}
		total += e.Size
	}
	table.SetFooter([]string{"total", strconv.Itoa(len(entries)), "", "", humanize.Bytes(uint64(total)), ""})
	table.SetBorder(false)
	table.Render()
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Name(name),
		kong.Description("Record scripted browser demos and render them into videos."),
		kong.Vars{
			"version":        string(cli.Version),
			"default_config": config.DefaultPath,
		})

	log.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
