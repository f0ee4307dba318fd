// Package types defines the script model and the recording types shared
// across the application.
package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Script is the fully parsed video script. It is treated as read-only
// for the duration of a pipeline run.
type Script struct {
	Meta   Meta         `yaml:"meta" json:"meta"`
	Brand  Brand        `yaml:"brand" json:"brand"`
	Output OutputConfig `yaml:"output" json:"output"`
	Scenes SceneList    `yaml:"scenes" json:"scenes"`
}

type Meta struct {
	Title string `yaml:"title" json:"title"`
}

type Brand struct {
	Logo            string `yaml:"logo,omitempty" json:"logo,omitempty"`
	PrimaryColor    string `yaml:"primaryColor" json:"primaryColor"`
	BackgroundColor string `yaml:"backgroundColor" json:"backgroundColor"`
	TextColor       string `yaml:"textColor" json:"textColor"`
	FontFamily      string `yaml:"fontFamily" json:"fontFamily"`
}

// DefaultBrand returns the brand used when the script does not define one.
func DefaultBrand() Brand {
	return Brand{
		PrimaryColor:    "#1e40af",
		BackgroundColor: "#0f172a",
		TextColor:       "#f8fafc",
		FontFamily:      "Inter",
	}
}

type OutputConfig struct {
	FPS      int             `yaml:"fps" json:"fps"`
	Variants []OutputVariant `yaml:"variants" json:"variants"`
	// Transition is the default for scenes that don't define their own.
	Transition *Transition `yaml:"transition,omitempty" json:"transition,omitempty"`
}

// DefaultOutputConfig renders a single 1080p desktop variant at 30 fps.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		FPS: 30,
		Variants: []OutputVariant{
			{ID: "desktop", Width: 1920, Height: 1080, AspectRatio: "16:9"},
		},
	}
}

type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// OutputVariant is one requested output format. Viewport is only set when
// the browser viewport has to differ from the output frame, eg mobile
// emulation composited into a landscape video.
type OutputVariant struct {
	ID          string    `yaml:"id" json:"id"`
	Width       int       `yaml:"width" json:"width"`
	Height      int       `yaml:"height" json:"height"`
	AspectRatio string    `yaml:"aspectRatio" json:"aspectRatio"`
	Viewport    *Viewport `yaml:"viewport,omitempty" json:"viewport,omitempty"`
}

// EffectiveViewport returns the viewport the browser is recorded at.
func (v OutputVariant) EffectiveViewport() (width, height int) {
	if v.Viewport != nil {
		return v.Viewport.Width, v.Viewport.Height
	}
	return v.Width, v.Height
}

type TransitionType string

const (
	TransitionFade  TransitionType = "fade"
	TransitionSlide TransitionType = "slide"
	TransitionZoom  TransitionType = "zoom"
	TransitionNone  TransitionType = "none"
)

type SlideDirection string

const (
	SlideLeft  SlideDirection = "left"
	SlideRight SlideDirection = "right"
	SlideUp    SlideDirection = "up"
	SlideDown  SlideDirection = "down"
)

// Transition describes the entry/exit effect of a scene. Duration is in seconds.
type Transition struct {
	Type      TransitionType `yaml:"type" json:"type"`
	Duration  float64        `yaml:"duration" json:"duration"`
	Direction SlideDirection `yaml:"direction,omitempty" json:"direction,omitempty"`
}

type SceneType string

const (
	SceneTypeTitle   SceneType = "title"
	SceneTypeBrowser SceneType = "browser"
)

// Scene is either a *TitleScene or a *BrowserScene. The set is closed:
// code handling scenes switches over exactly these two types.
type Scene interface {
	SceneID() string
	Type() SceneType
	SceneTransition() *Transition
	isScene()
}

type TitleVariant string

const (
	TitleMain    TitleVariant = "main"
	TitleChapter TitleVariant = "chapter"
	TitleMinimal TitleVariant = "minimal"
	TitleOutro   TitleVariant = "outro"
)

type TitleScene struct {
	ID         string       `yaml:"id" json:"id"`
	Duration   float64      `yaml:"duration" json:"duration"`
	Heading    string       `yaml:"heading" json:"heading"`
	Subheading string       `yaml:"subheading,omitempty" json:"subheading,omitempty"`
	Variant    TitleVariant `yaml:"variant" json:"variant"`
	Transition *Transition  `yaml:"transition,omitempty" json:"transition,omitempty"`
}

func (s *TitleScene) SceneID() string              { return s.ID }
func (s *TitleScene) Type() SceneType              { return SceneTypeTitle }
func (s *TitleScene) SceneTransition() *Transition { return s.Transition }
func (s *TitleScene) isScene()                     {}

// CursorConfig configures the pointer overlay painted over browser scenes.
type CursorConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Style   string `yaml:"style,omitempty" json:"style,omitempty"`
	Color   string `yaml:"color,omitempty" json:"color,omitempty"`
	Size    int    `yaml:"size,omitempty" json:"size,omitempty"`
}

// FrameConfig configures the browser chrome drawn around a recording.
type FrameConfig struct {
	Style    string `yaml:"style" json:"style"` // macos, minimal or none
	ShowURL  bool   `yaml:"showUrl" json:"showUrl"`
	DarkMode bool   `yaml:"darkMode" json:"darkMode"`
}

type BrowserScene struct {
	ID    string   `yaml:"id" json:"id"`
	URL   string   `yaml:"url" json:"url"`
	Steps StepList `yaml:"steps" json:"steps"`
	// SelectorOverrides maps a variant id to a table of selector replacements.
	SelectorOverrides map[string]map[string]string `yaml:"selectorOverrides,omitempty" json:"selectorOverrides,omitempty"`
	CustomCSS         string                       `yaml:"customCss,omitempty" json:"customCss,omitempty"`
	Cursor            *CursorConfig                `yaml:"cursor,omitempty" json:"cursor,omitempty"`
	Frame             *FrameConfig                 `yaml:"frame,omitempty" json:"frame,omitempty"`
	Transition        *Transition                  `yaml:"transition,omitempty" json:"transition,omitempty"`
}

func (s *BrowserScene) SceneID() string              { return s.ID }
func (s *BrowserScene) Type() SceneType              { return SceneTypeBrowser }
func (s *BrowserScene) SceneTransition() *Transition { return s.Transition }
func (s *BrowserScene) isScene()                     {}

// SceneList decodes the polymorphic scenes list using the `type` key.
type SceneList []Scene

func (sl *SceneList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: scenes must be a list", value.Line)
	}
	scenes := make(SceneList, 0, len(value.Content))
	for _, n := range value.Content {
		var probe struct {
			Type SceneType `yaml:"type"`
		}
		if err := n.Decode(&probe); err != nil {
			return err
		}
		switch probe.Type {
		case SceneTypeTitle:
			s := &TitleScene{Duration: 4, Variant: TitleMain}
			if err := n.Decode(s); err != nil {
				return err
			}
			scenes = append(scenes, s)
		case SceneTypeBrowser:
			s := &BrowserScene{}
			if err := n.Decode(s); err != nil {
				return err
			}
			scenes = append(scenes, s)
		default:
			return fmt.Errorf("line %d: unknown scene type %q (expected title or browser)", n.Line, probe.Type)
		}
	}
	*sl = scenes
	return nil
}

func (sl SceneList) MarshalJSON() ([]byte, error) {
	tagged := make([]json.RawMessage, 0, len(sl))
	for _, s := range sl {
		raw, err := withTag(s, "type", string(s.Type()))
		if err != nil {
			return nil, err
		}
		tagged = append(tagged, raw)
	}
	return json.Marshal(tagged)
}

// withTag marshals v and adds the discriminator key to the resulting object.
func withTag(v any, key, tag string) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	t, _ := json.Marshal(tag)
	m[key] = t
	return json.Marshal(m)
}
