package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionClick    ActionType = "click"
	ActionFill     ActionType = "fill"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
)

const (
	DefaultStepDuration     = 2.0 // seconds
	DefaultTypeSpeedMs      = 80
	DefaultWaitTimeoutMs    = 1000
	DefaultWaitForTimeoutMs = 5000
	// DefaultTransitionDuration is used when a transition does not set its own duration.
	DefaultTransitionDuration = 0.3
)

// Step is one scripted action of a browser scene. Implementations are
// NavigateStep, ClickStep, FillStep, ScrollStep and WaitStep.
type Step interface {
	Action() ActionType
	Common() StepCommon
	isStep()
}

// StepCommon holds the fields every step has. Duration is the hold time
// in seconds after the action completed.
type StepCommon struct {
	Duration float64  `yaml:"duration" json:"duration"`
	Caption  *Caption `yaml:"caption,omitempty" json:"caption,omitempty"`
}

type NavigateStep struct {
	StepCommon `yaml:",inline"`
	URL        string   `yaml:"url" json:"url"`
	WaitFor    *WaitFor `yaml:"waitFor,omitempty" json:"waitFor,omitempty"`
}

type ClickStep struct {
	StepCommon `yaml:",inline"`
	Selector   string   `yaml:"selector" json:"selector"`
	Highlight  bool     `yaml:"highlight" json:"highlight"`
	WaitFor    *WaitFor `yaml:"waitFor,omitempty" json:"waitFor,omitempty"`
}

type FillStep struct {
	StepCommon `yaml:",inline"`
	Selector   string `yaml:"selector" json:"selector"`
	Value      string `yaml:"value" json:"value"`
	// TypeSpeed is the delay between two typed characters in ms.
	TypeSpeed int      `yaml:"typeSpeed" json:"typeSpeed"`
	WaitFor   *WaitFor `yaml:"waitFor,omitempty" json:"waitFor,omitempty"`
}

// ScrollStep scrolls Selector into view if set, otherwise scrolls the
// window by X/Y pixels.
type ScrollStep struct {
	StepCommon `yaml:",inline"`
	Selector   string  `yaml:"selector,omitempty" json:"selector,omitempty"`
	X          float64 `yaml:"x" json:"x"`
	Y          float64 `yaml:"y" json:"y"`
	Smooth     bool    `yaml:"smooth" json:"smooth"`
}

type WaitStep struct {
	StepCommon `yaml:",inline"`
	Timeout    int `yaml:"timeout" json:"timeout"` // ms
}

func (s NavigateStep) Action() ActionType { return ActionNavigate }
func (s ClickStep) Action() ActionType    { return ActionClick }
func (s FillStep) Action() ActionType     { return ActionFill }
func (s ScrollStep) Action() ActionType   { return ActionScroll }
func (s WaitStep) Action() ActionType     { return ActionWait }

func (s NavigateStep) Common() StepCommon { return s.StepCommon }
func (s ClickStep) Common() StepCommon    { return s.StepCommon }
func (s FillStep) Common() StepCommon     { return s.StepCommon }
func (s ScrollStep) Common() StepCommon   { return s.StepCommon }
func (s WaitStep) Common() StepCommon     { return s.StepCommon }

func (NavigateStep) isStep() {}
func (ClickStep) isStep()    {}
func (FillStep) isStep()     {}
func (ScrollStep) isStep()   {}
func (WaitStep) isStep()     {}

// StepSelector returns the DOM selector a step targets, if any.
func StepSelector(s Step) (string, bool) {
	switch st := s.(type) {
	case ClickStep:
		return st.Selector, true
	case FillStep:
		return st.Selector, true
	case ScrollStep:
		return st.Selector, st.Selector != ""
	}
	return "", false
}

// StepWaitFor returns the precondition of a step, if any.
func StepWaitFor(s Step) *WaitFor {
	switch st := s.(type) {
	case NavigateStep:
		return st.WaitFor
	case ClickStep:
		return st.WaitFor
	case FillStep:
		return st.WaitFor
	}
	return nil
}

type CaptionPosition string
type CaptionStyle string
type CaptionAnimation string

const (
	CaptionTop    CaptionPosition = "top"
	CaptionBottom CaptionPosition = "bottom"
	CaptionCenter CaptionPosition = "center"
)

// Caption is text shown while the effect of a step is on screen.
type Caption struct {
	Text      string           `yaml:"text" json:"text"`
	Position  CaptionPosition  `yaml:"position" json:"position"`
	Style     CaptionStyle     `yaml:"style" json:"style"`
	Animation CaptionAnimation `yaml:"animation" json:"animation"`
}

func (c *Caption) UnmarshalYAML(value *yaml.Node) error {
	type plain Caption
	p := plain{Position: CaptionBottom, Style: "bar", Animation: "slideUp"}
	if value.Kind == yaml.ScalarNode {
		p.Text = value.Value
		*c = Caption(p)
		return nil
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = Caption(p)
	return nil
}

type WaitState string

const (
	WaitVisible  WaitState = "visible"
	WaitAttached WaitState = "attached"
	WaitHidden   WaitState = "hidden"
	WaitDetached WaitState = "detached"
)

// WaitFor is a precondition that has to hold before a step executes.
// In yaml it can be given as a bare selector, which means "visible within 5s".
type WaitFor struct {
	Selector string    `yaml:"selector" json:"selector"`
	State    WaitState `yaml:"state" json:"state"`
	Timeout  int       `yaml:"timeout" json:"timeout"` // ms
}

func (w *WaitFor) UnmarshalYAML(value *yaml.Node) error {
	type plain WaitFor
	p := plain{State: WaitVisible, Timeout: DefaultWaitForTimeoutMs}
	if value.Kind == yaml.ScalarNode {
		p.Selector = value.Value
		*w = WaitFor(p)
		return nil
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*w = WaitFor(p)
	return nil
}

func (t *Transition) UnmarshalYAML(value *yaml.Node) error {
	type plain Transition
	p := plain{Duration: DefaultTransitionDuration, Direction: SlideLeft}
	if value.Kind == yaml.ScalarNode {
		p.Type = TransitionType(value.Value)
		*t = Transition(p)
		return nil
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Transition(p)
	return nil
}

// StepList decodes the polymorphic steps list using the `action` key.
type StepList []Step

func (sl *StepList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: steps must be a list", value.Line)
	}
	steps := make(StepList, 0, len(value.Content))
	for _, n := range value.Content {
		var probe struct {
			Action ActionType `yaml:"action"`
		}
		if err := n.Decode(&probe); err != nil {
			return err
		}
		common := StepCommon{Duration: DefaultStepDuration}
		var step Step
		var err error
		switch probe.Action {
		case ActionNavigate:
			s := NavigateStep{StepCommon: common}
			err = n.Decode(&s)
			step = s
		case ActionClick:
			s := ClickStep{StepCommon: common}
			err = n.Decode(&s)
			step = s
		case ActionFill:
			s := FillStep{StepCommon: common, TypeSpeed: DefaultTypeSpeedMs}
			err = n.Decode(&s)
			step = s
		case ActionScroll:
			s := ScrollStep{StepCommon: common, Smooth: true}
			err = n.Decode(&s)
			step = s
		case ActionWait:
			s := WaitStep{StepCommon: common, Timeout: DefaultWaitTimeoutMs}
			err = n.Decode(&s)
			step = s
		default:
			return fmt.Errorf("line %d: unknown step action %q", n.Line, probe.Action)
		}
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}
	*sl = steps
	return nil
}

func (sl StepList) MarshalJSON() ([]byte, error) {
	tagged := make([]json.RawMessage, 0, len(sl))
	for _, s := range sl {
		raw, err := withTag(s, "action", string(s.Action()))
		if err != nil {
			return nil, err
		}
		tagged = append(tagged, raw)
	}
	return json.Marshal(tagged)
}
