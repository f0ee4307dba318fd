package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jakopako/scenecaster/internal/types"
)

// Page is the live page a step is executed against.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, state types.WaitState, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Clear(ctx context.Context, selector string) error
	Type(ctx context.Context, text string, delay time.Duration) error
	ScrollIntoView(ctx context.Context, selector string, smooth bool) error
	ScrollBy(ctx context.Context, x, y float64, smooth bool) error
	Sleep(ctx context.Context, d time.Duration) error
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func waitFor(ctx context.Context, p Page, w *types.WaitFor) error {
	if w == nil {
		return nil
	}
	return p.WaitFor(ctx, w.Selector, w.State, ms(w.Timeout))
}

// Execute performs a single step and returns once its immediate effect
// took place. The hold duration of the step is not part of it. Errors of
// the page are returned unchanged.
func Execute(ctx context.Context, p Page, step types.Step) error {
	switch s := step.(type) {
	case types.NavigateStep:
		if err := p.Navigate(ctx, s.URL); err != nil {
			return err
		}
		// the awaited element only exists once the new page is loaded
		return waitFor(ctx, p, s.WaitFor)
	case types.ClickStep:
		if err := waitFor(ctx, p, s.WaitFor); err != nil {
			return err
		}
		return p.Click(ctx, s.Selector)
	case types.FillStep:
		if err := waitFor(ctx, p, s.WaitFor); err != nil {
			return err
		}
		if err := p.Click(ctx, s.Selector); err != nil {
			return err
		}
		if err := p.Clear(ctx, s.Selector); err != nil {
			return err
		}
		return p.Type(ctx, s.Value, ms(s.TypeSpeed))
	case types.ScrollStep:
		if s.Selector != "" {
			return p.ScrollIntoView(ctx, s.Selector, s.Smooth)
		}
		return p.ScrollBy(ctx, s.X, s.Y, s.Smooth)
	case types.WaitStep:
		return p.Sleep(ctx, ms(s.Timeout))
	}
	return fmt.Errorf("unsupported step type %T", step)
}

// ResolveSelectors returns step with its selectors replaced by the entries
// of overrides. The selector of a waitFor precondition is replaced as well.
// The given step is not modified.
func ResolveSelectors(step types.Step, overrides map[string]string) types.Step {
	if len(overrides) == 0 {
		return step
	}
	replace := func(sel string) string {
		if o, ok := overrides[sel]; ok && sel != "" {
			return o
		}
		return sel
	}
	replaceWait := func(w *types.WaitFor) *types.WaitFor {
		if w == nil {
			return nil
		}
		c := *w
		c.Selector = replace(c.Selector)
		return &c
	}
	switch s := step.(type) {
	case types.NavigateStep:
		s.WaitFor = replaceWait(s.WaitFor)
		return s
	case types.ClickStep:
		s.Selector = replace(s.Selector)
		s.WaitFor = replaceWait(s.WaitFor)
		return s
	case types.FillStep:
		s.Selector = replace(s.Selector)
		s.WaitFor = replaceWait(s.WaitFor)
		return s
	case types.ScrollStep:
		s.Selector = replace(s.Selector)
		return s
	}
	return step
}
