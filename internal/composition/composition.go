// Package composition turns a script and its recordings into a frame
// accurate timeline that a renderer can paint without doing any timing
// computation of its own.
package composition

import (
	"errors"
	"fmt"

	"github.com/jakopako/scenecaster/internal/timing"
	"github.com/jakopako/scenecaster/internal/types"
)

// ErrNoRecording is returned by Build if a browser scene has no recording.
var ErrNoRecording = errors.New("no recording found")

// DefaultTransition is used if neither the scene nor the output config
// define a transition.
var DefaultTransition = types.Transition{
	Type:     types.TransitionFade,
	Duration: types.DefaultTransitionDuration,
}

// Transition is a resolved scene transition with its length in frames.
type Transition struct {
	Type           types.TransitionType `json:"type"`
	DurationFrames int                  `json:"durationFrames"`
	Direction      types.SlideDirection `json:"direction,omitempty"`
}

type TitlePayload struct {
	Heading    string             `json:"heading"`
	Subheading string             `json:"subheading,omitempty"`
	Variant    types.TitleVariant `json:"titleVariant"`
}

// BrowserPayload references a recording. VideoPath is relative to the
// staging directory that is handed to the renderer.
type BrowserPayload struct {
	VideoPath  string                  `json:"videoPath"`
	URL        string                  `json:"url"`
	Timestamps []types.ActionTimestamp `json:"timestamps"`
	Cursor     *types.CursorConfig     `json:"cursor,omitempty"`
	Frame      *types.FrameConfig      `json:"frame,omitempty"`
}

// Scene is one entry of the timeline. Exactly one of Title and Browser is set.
type Scene struct {
	ID             string          `json:"sceneId"`
	Type           types.SceneType `json:"type"`
	StartFrame     int             `json:"startFrame"`
	DurationFrames int             `json:"durationFrames"`
	Transition     Transition      `json:"transition"`
	Title          *TitlePayload   `json:"title,omitempty"`
	Browser        *BrowserPayload `json:"browser,omitempty"`
}

// Data is everything needed to paint every frame of one variant.
type Data struct {
	Title       string          `json:"title"`
	VariantID   string          `json:"variantId"`
	FPS         int             `json:"fps"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Viewport    *types.Viewport `json:"viewport,omitempty"`
	Brand       types.Brand     `json:"brand"`
	Scenes      []Scene         `json:"scenes"`
	TotalFrames int             `json:"totalFrames"`
}

// Build creates the composition for one variant. Scenes keep their order
// in the script. Every browser scene of the script must have an entry in
// recordings, keyed by scene id.
func Build(script *types.Script, variant types.OutputVariant, recordings map[string]*types.RecordingResult) (*Data, error) {
	fps := script.Output.FPS
	d := &Data{
		Title:     script.Meta.Title,
		VariantID: variant.ID,
		FPS:       fps,
		Width:     variant.Width,
		Height:    variant.Height,
		Viewport:  variant.Viewport,
		Brand:     script.Brand,
		Scenes:    make([]Scene, 0, len(script.Scenes)),
	}

	offset := 0
	for _, s := range script.Scenes {
		cs := Scene{
			ID:         s.SceneID(),
			Type:       s.Type(),
			StartFrame: offset,
			Transition: ResolveTransition(s, script.Output, fps),
		}
		switch scene := s.(type) {
		case *types.TitleScene:
			cs.DurationFrames = timing.SecondsToFrames(scene.Duration, fps)
			cs.Title = &TitlePayload{
				Heading:    scene.Heading,
				Subheading: scene.Subheading,
				Variant:    scene.Variant,
			}
		case *types.BrowserScene:
			rec, found := recordings[scene.ID]
			if !found || rec == nil {
				return nil, fmt.Errorf("%w for scene %q", ErrNoRecording, scene.ID)
			}
			cs.DurationFrames = timing.MsToFrames(rec.DurationMs, fps)
			cs.Browser = &BrowserPayload{
				VideoPath:  rec.VideoPath,
				URL:        scene.URL,
				Timestamps: rec.Timestamps,
				Cursor:     scene.Cursor,
				Frame:      scene.Frame,
			}
		default:
			return nil, fmt.Errorf("unsupported scene type %T", s)
		}
		offset += cs.DurationFrames
		d.Scenes = append(d.Scenes, cs)
	}
	d.TotalFrames = offset
	return d, nil
}

// ResolveTransition picks the scene's transition, falling back to the
// output default and then to DefaultTransition.
func ResolveTransition(s types.Scene, output types.OutputConfig, fps int) Transition {
	t := DefaultTransition
	if st := s.SceneTransition(); st != nil {
		t = *st
	} else if output.Transition != nil {
		t = *output.Transition
	}
	return Transition{
		Type:           t.Type,
		DurationFrames: timing.SecondsToFrames(t.Duration, fps),
		Direction:      t.Direction,
	}
}

// ThumbnailFrame returns the absolute frame used for the thumbnail.
// If sceneID is empty, the frame about one second into the first title
// scene is used, or 0 if there is none. A negative frame means one
// second into the chosen scene.
func ThumbnailFrame(d *Data, sceneID string, frame int) (int, error) {
	if sceneID == "" && frame >= 0 {
		return min(frame, max(d.TotalFrames-1, 0)), nil
	}
	for _, s := range d.Scenes {
		if sceneID == "" && s.Type != types.SceneTypeTitle {
			continue
		}
		if sceneID != "" && s.ID != sceneID {
			continue
		}
		last := max(s.DurationFrames-1, 0)
		if frame < 0 {
			return s.StartFrame + min(d.FPS, last), nil
		}
		return s.StartFrame + min(frame, last), nil
	}
	if sceneID != "" {
		return 0, fmt.Errorf("thumbnail scene %q not found", sceneID)
	}
	return 0, nil
}
