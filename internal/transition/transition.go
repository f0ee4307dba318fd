// Package transition computes the per-frame entry/exit effect of a scene.
//
// All kinds share the same fade envelope: opacity ramps 0->1 over the first
// transitionFrames frames, holds at 1 and ramps 1->0 over the last
// transitionFrames frames. When the ramps overlap (2*t > total) the opacity
// is the minimum of both ramps. Spatial transforms use the entry ramp in the
// first half of the scene and the exit ramp in the second half.
package transition

import (
	"fmt"

	"github.com/jakopako/scenecaster/internal/types"
)

// Style is the visual state of a scene at one frame. Offsets are
// percentages of the frame size.
type Style struct {
	Opacity    float64
	TranslateX float64
	TranslateY float64
	Scale      float64
}

// Identity is a fully visible, untransformed scene.
var Identity = Style{Opacity: 1, Scale: 1}

// Transform renders the style as a css transform, empty if there is none.
func (s Style) Transform() string {
	switch {
	case s.TranslateX != 0:
		return fmt.Sprintf("translateX(%g%%)", s.TranslateX)
	case s.TranslateY != 0:
		return fmt.Sprintf("translateY(%g%%)", s.TranslateY)
	case s.Scale != 1 && s.Scale != 0:
		return fmt.Sprintf("scale(%g)", s.Scale)
	}
	return ""
}

// interpolate maps x from [x0, x1] to [y0, y1], clamping outside the range.
func interpolate(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		if x < x0 {
			return y0
		}
		return y1
	}
	if x <= x0 {
		return y0
	}
	if x >= x1 {
		return y1
	}
	return y0 + (x-x0)/(x1-x0)*(y1-y0)
}

// Fade returns the opacity at frame.
func Fade(frame, totalFrames, transitionFrames int) float64 {
	if transitionFrames <= 0 {
		return 1
	}
	f, total, t := float64(frame), float64(totalFrames), float64(transitionFrames)
	in := interpolate(f, 0, t, 0, 1)
	out := interpolate(f, total-t, total, 1, 0)
	return min(in, out)
}

// entering reports whether the spatial transform should follow the entry ramp.
func entering(frame, totalFrames int) bool {
	return 2*frame < totalFrames
}

var slideAxes = map[types.SlideDirection]struct {
	horizontal bool
	sign       float64
}{
	types.SlideLeft:  {true, -1},
	types.SlideRight: {true, 1},
	types.SlideUp:    {false, -1},
	types.SlideDown:  {false, 1},
}

// Slide moves the scene in from an off-screen offset and out to the
// opposite side.
func Slide(frame, totalFrames, transitionFrames int, direction types.SlideDirection) Style {
	style := Style{Opacity: Fade(frame, totalFrames, transitionFrames), Scale: 1}
	if transitionFrames <= 0 {
		return style
	}
	axis, ok := slideAxes[direction]
	if !ok {
		axis = slideAxes[types.SlideLeft]
	}
	f, total, t := float64(frame), float64(totalFrames), float64(transitionFrames)
	var offset float64
	if entering(frame, totalFrames) {
		offset = interpolate(f, 0, t, axis.sign*100, 0)
	} else {
		offset = interpolate(f, total-t, total, 0, axis.sign*-100)
	}
	if axis.horizontal {
		style.TranslateX = offset
	} else {
		style.TranslateY = offset
	}
	return style
}

// Zoom scales from 0.8 to 1 on entry and from 1 to 1.2 on exit.
func Zoom(frame, totalFrames, transitionFrames int) Style {
	style := Style{Opacity: Fade(frame, totalFrames, transitionFrames), Scale: 1}
	if transitionFrames <= 0 {
		return style
	}
	f, total, t := float64(frame), float64(totalFrames), float64(transitionFrames)
	if entering(frame, totalFrames) {
		style.Scale = interpolate(f, 0, t, 0.8, 1)
	} else {
		style.Scale = interpolate(f, total-t, total, 1, 1.2)
	}
	return style
}

// Apply computes the style of the given transition kind at frame.
func Apply(kind types.TransitionType, frame, totalFrames, transitionFrames int, direction types.SlideDirection) Style {
	switch kind {
	case types.TransitionFade:
		return Style{Opacity: Fade(frame, totalFrames, transitionFrames), Scale: 1}
	case types.TransitionSlide:
		return Slide(frame, totalFrames, transitionFrames, direction)
	case types.TransitionZoom:
		return Zoom(frame, totalFrames, transitionFrames)
	}
	return Identity
}
