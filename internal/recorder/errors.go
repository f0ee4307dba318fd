package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jakopako/scenecaster/internal/browser"
	"github.com/jakopako/scenecaster/internal/types"
)

// ErrorKind classifies why a recording failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindElementNotFound
	KindNavigation
	KindIntercepted
)

func (k ErrorKind) String() string {
	switch k {
	case KindElementNotFound:
		return "element not found"
	case KindNavigation:
		return "navigation failed"
	case KindIntercepted:
		return "element intercepted"
	}
	return "unknown"
}

// RecordingError wraps the failure of a step with the context needed to
// fix the script.
type RecordingError struct {
	SceneID   string
	StepIndex int
	Step      types.Step
	PageURL   string
	Kind      ErrorKind
	Err       error
}

func newRecordingError(err error, sceneID string, stepIndex int, step types.Step, pageURL string) *RecordingError {
	return &RecordingError{
		SceneID:   sceneID,
		StepIndex: stepIndex,
		Step:      step,
		PageURL:   pageURL,
		Kind:      classify(err, step),
		Err:       err,
	}
}

func (e *RecordingError) Unwrap() error { return e.Err }

func (e *RecordingError) Error() string {
	location := fmt.Sprintf("scene %q, step %d", e.SceneID, e.StepIndex+1)
	pageURL := e.PageURL
	if pageURL == "" {
		pageURL = "unknown"
	}
	selector, _ := types.StepSelector(e.Step)

	var b strings.Builder
	switch e.Kind {
	case KindElementNotFound:
		info := ""
		if selector != "" {
			info = fmt.Sprintf(" (%q)", selector)
		}
		fmt.Fprintf(&b, "Could not find element%s in %s.\n  Page URL: %s", info, location, pageURL)
	case KindNavigation:
		target := pageURL
		if nav, ok := e.Step.(types.NavigateStep); ok {
			target = nav.URL
		}
		fmt.Fprintf(&b, "Failed to load URL %q in %s.", target, location)
	case KindIntercepted:
		if selector == "" {
			selector = "unknown"
		}
		fmt.Fprintf(&b, "Element %q is covered by another element in %s.\n  Page URL: %s", selector, location, pageURL)
	default:
		fmt.Fprintf(&b, "Recording failed at %s: %v\n  Page URL: %s", location, e.Err, pageURL)
	}
	if s := e.Suggestions(); len(s) > 0 {
		b.WriteString("\n  Suggestions:")
		for _, line := range s {
			b.WriteString("\n    - ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// Suggestions returns actionable hints for the error kind.
func (e *RecordingError) Suggestions() []string {
	switch e.Kind {
	case KindElementNotFound:
		return []string{
			`Add a "waitFor" field to wait for the element to appear`,
			"Check that the selector matches an element on the page",
			"Try running with --no-headless to see the browser",
		}
	case KindNavigation:
		return []string{
			"Check that the URL is correct and accessible",
			"Ensure the site is running if it's a local URL",
		}
	case KindIntercepted:
		return []string{
			`Use "customCss" to hide overlapping elements (cookie banners, modals)`,
			`Add a "wait" step before this action to let animations complete`,
		}
	}
	return nil
}

func classify(err error, step types.Step) ErrorKind {
	var navErr *browser.NavigationError
	var timeoutErr *browser.TimeoutError
	var interceptedErr *browser.InterceptedError
	switch {
	case errors.As(err, &navErr):
		return KindNavigation
	case errors.As(err, &interceptedErr):
		return KindIntercepted
	case errors.As(err, &timeoutErr):
		return KindElementNotFound
	case errors.Is(err, context.DeadlineExceeded):
		if step != nil && step.Action() == types.ActionNavigate {
			return KindNavigation
		}
		return KindElementNotFound
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "Timeout", "waiting for", "locator.click", "no element"):
		return KindElementNotFound
	case containsAny(msg, "net::ERR_", "Navigation", "navigation", "goto"):
		return KindNavigation
	case containsAny(msg, "intercept", "overlay", "pointer event"):
		return KindIntercepted
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
