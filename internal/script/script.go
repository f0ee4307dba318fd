// Package script reads scenecaster scripts from yaml files, fills in the
// defaults and validates them.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/jakopako/scenecaster/internal/types"
	"gopkg.in/yaml.v3"
)

// ParseError is returned if a script cannot be read or is invalid.
// Issues holds one `path: message` line per validation problem.
type ParseError struct {
	Message string
	Issues  []string
}

func (e *ParseError) Error() string {
	if len(e.Issues) == 0 {
		return e.Message
	}
	var b strings.Builder
	b.WriteString(e.Message)
	for _, i := range e.Issues {
		b.WriteString("\n  - ")
		b.WriteString(i)
	}
	return b.String()
}

// ParseFile reads and validates the script at path.
func ParseFile(path string) (*types.Script, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("cannot read file: %s", abs)}
	}
	s, err := Parse(data, abs)
	if err != nil {
		return nil, err
	}
	// relative logo paths are relative to the script
	if s.Brand.Logo != "" && !filepath.IsAbs(s.Brand.Logo) {
		s.Brand.Logo = filepath.Join(filepath.Dir(abs), s.Brand.Logo)
	}
	return s, nil
}

// Parse decodes and validates a yaml (or json) script. source is only used
// in error messages.
func Parse(data []byte, source string) (*types.Script, error) {
	s := &types.Script{
		Brand:  types.DefaultBrand(),
		Output: types.DefaultOutputConfig(),
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Message: "script file is empty"}
		}
		msg := "invalid yaml"
		if source != "" {
			msg += " in " + source
		}
		return nil, &ParseError{Message: msg, Issues: []string{err.Error()}}
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

var aspectRatioRe = regexp.MustCompile(`^\d+:\d+$`)

var (
	waitStates = []types.WaitState{types.WaitVisible, types.WaitAttached, types.WaitHidden, types.WaitDetached}

	transitionTypes = []types.TransitionType{types.TransitionFade, types.TransitionSlide, types.TransitionZoom, types.TransitionNone}

	slideDirections = []types.SlideDirection{types.SlideLeft, types.SlideRight, types.SlideUp, types.SlideDown}

	titleVariants = []types.TitleVariant{types.TitleMain, types.TitleChapter, types.TitleMinimal, types.TitleOutro}

	captionPositions  = []types.CaptionPosition{types.CaptionTop, types.CaptionBottom, types.CaptionCenter}
	captionStyles     = []types.CaptionStyle{"bar", "bubble", "subtitle", "pill"}
	captionAnimations = []types.CaptionAnimation{"slideUp", "fadeIn", "typewriter", "none"}

	frameStyles = []string{"macos", "minimal", "none"}
)

type issues []string

func (is *issues) add(path, format string, args ...any) {
	*is = append(*is, fmt.Sprintf("%s: %s", path, fmt.Sprintf(format, args...)))
}

// Validate checks a decoded script. All problems are collected into a
// single *ParseError.
func Validate(s *types.Script) error {
	var is issues

	if s.Meta.Title == "" {
		is.add("meta.title", "must not be empty")
	}
	if s.Output.FPS <= 0 {
		is.add("output.fps", "must be a positive integer")
	}
	if len(s.Output.Variants) == 0 {
		is.add("output.variants", "at least one variant is required")
	}
	variantIDs := map[string]bool{}
	for i, v := range s.Output.Variants {
		p := fmt.Sprintf("output.variants.%d", i)
		if v.ID == "" {
			is.add(p+".id", "must not be empty")
		} else if variantIDs[v.ID] {
			is.add(p+".id", "duplicate variant id %q", v.ID)
		}
		variantIDs[v.ID] = true
		if v.Width <= 0 || v.Height <= 0 {
			is.add(p, "width and height must be positive integers")
		}
		if !aspectRatioRe.MatchString(v.AspectRatio) {
			is.add(p+".aspectRatio", "must look like 16:9, got %q", v.AspectRatio)
		}
		if v.Viewport != nil && (v.Viewport.Width <= 0 || v.Viewport.Height <= 0) {
			is.add(p+".viewport", "width and height must be positive integers")
		}
	}
	if s.Output.Transition != nil {
		validateTransition(&is, "output.transition", s.Output.Transition)
	}

	if len(s.Scenes) == 0 {
		is.add("scenes", "at least one scene is required")
	}
	sceneIDs := map[string]bool{}
	for i, scene := range s.Scenes {
		p := fmt.Sprintf("scenes.%d", i)
		id := scene.SceneID()
		if id == "" {
			is.add(p+".id", "must not be empty")
		} else if sceneIDs[id] {
			is.add(p+".id", "duplicate scene id %q", id)
		}
		sceneIDs[id] = true
		if t := scene.SceneTransition(); t != nil {
			validateTransition(&is, p+".transition", t)
		}

		switch sc := scene.(type) {
		case *types.TitleScene:
			if sc.Heading == "" {
				is.add(p+".heading", "must not be empty")
			}
			if sc.Duration <= 0 {
				is.add(p+".duration", "must be positive")
			}
			if !slices.Contains(titleVariants, sc.Variant) {
				is.add(p+".variant", "unknown title variant %q", sc.Variant)
			}
		case *types.BrowserScene:
			validateBrowserScene(&is, p, sc, variantIDs)
		}
	}

	if len(is) > 0 {
		return &ParseError{Message: "script validation failed:", Issues: is}
	}
	return nil
}

func validateBrowserScene(is *issues, p string, sc *types.BrowserScene, variantIDs map[string]bool) {
	if !validURL(sc.URL) {
		is.add(p+".url", "invalid url %q", sc.URL)
	}
	if len(sc.Steps) == 0 {
		is.add(p+".steps", "at least one step is required")
	}
	for variant := range sc.SelectorOverrides {
		if !variantIDs[variant] {
			is.add(p+".selectorOverrides", "unknown variant %q", variant)
		}
	}
	if sc.Frame != nil && sc.Frame.Style != "" && !slices.Contains(frameStyles, sc.Frame.Style) {
		is.add(p+".frame.style", "unknown frame style %q", sc.Frame.Style)
	}
	for j, step := range sc.Steps {
		sp := fmt.Sprintf("%s.steps.%d", p, j)
		c := step.Common()
		if c.Duration <= 0 {
			is.add(sp+".duration", "must be positive")
		}
		if c.Caption != nil {
			validateCaption(is, sp+".caption", c.Caption)
		}
		if w := types.StepWaitFor(step); w != nil {
			if w.Selector == "" {
				is.add(sp+".waitFor.selector", "must not be empty")
			}
			if !slices.Contains(waitStates, w.State) {
				is.add(sp+".waitFor.state", "unknown state %q", w.State)
			}
			if w.Timeout <= 0 {
				is.add(sp+".waitFor.timeout", "must be positive")
			}
		}
		switch st := step.(type) {
		case types.NavigateStep:
			if !validURL(st.URL) {
				is.add(sp+".url", "invalid url %q", st.URL)
			}
		case types.ClickStep:
			if st.Selector == "" {
				is.add(sp+".selector", "must not be empty")
			}
		case types.FillStep:
			if st.Selector == "" {
				is.add(sp+".selector", "must not be empty")
			}
			if st.TypeSpeed <= 0 {
				is.add(sp+".typeSpeed", "must be positive")
			}
		case types.WaitStep:
			if st.Timeout <= 0 {
				is.add(sp+".timeout", "must be positive")
			}
		}
	}
}

func validateCaption(is *issues, p string, c *types.Caption) {
	if c.Text == "" {
		is.add(p+".text", "must not be empty")
	}
	if !slices.Contains(captionPositions, c.Position) {
		is.add(p+".position", "unknown position %q", c.Position)
	}
	if !slices.Contains(captionStyles, c.Style) {
		is.add(p+".style", "unknown style %q", c.Style)
	}
	if !slices.Contains(captionAnimations, c.Animation) {
		is.add(p+".animation", "unknown animation %q", c.Animation)
	}
}

func validateTransition(is *issues, p string, t *types.Transition) {
	if !slices.Contains(transitionTypes, t.Type) {
		is.add(p+".type", "unknown transition %q", t.Type)
	}
	if t.Duration < 0 {
		is.add(p+".duration", "must not be negative")
	}
	if t.Type == types.TransitionSlide && !slices.Contains(slideDirections, t.Direction) {
		is.add(p+".direction", "unknown direction %q", t.Direction)
	}
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
