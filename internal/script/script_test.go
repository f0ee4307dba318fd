package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jakopako/scenecaster/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScript = `
meta:
  title: Login Tour
brand:
  logo: logo.png
output:
  fps: 60
  variants:
    - id: desktop
      width: 1920
      height: 1080
      aspectRatio: "16:9"
    - id: mobile
      width: 1080
      height: 1920
      aspectRatio: "9:16"
      viewport:
        width: 390
        height: 844
scenes:
  - type: title
    id: intro
    heading: Welcome
  - type: browser
    id: login
    url: https://example.com/login
    transition: slide
    selectorOverrides:
      mobile:
        "#btn": ".mobile-btn"
    steps:
      - action: navigate
        url: https://example.com/login
        waitFor: "#email"
      - action: fill
        selector: "#email"
        value: me@example.com
        caption: Enter your email
      - action: click
        selector: "#btn"
        highlight: true
        waitFor:
          selector: "#btn"
          state: attached
      - action: scroll
        y: 400
      - action: wait
`

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte(validScript), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Login Tour", s.Meta.Title)
	assert.Equal(t, "logo.png", s.Brand.Logo)
	assert.Equal(t, "#1e40af", s.Brand.PrimaryColor)
	assert.Equal(t, "Inter", s.Brand.FontFamily)
	assert.Equal(t, 60, s.Output.FPS)
	require.Len(t, s.Output.Variants, 2)
	w, h := s.Output.Variants[1].EffectiveViewport()
	assert.Equal(t, []int{390, 844}, []int{w, h})

	require.Len(t, s.Scenes, 2)
	title := s.Scenes[0].(*types.TitleScene)
	assert.Equal(t, 4.0, title.Duration)
	assert.Equal(t, types.TitleMain, title.Variant)

	browser := s.Scenes[1].(*types.BrowserScene)
	require.NotNil(t, browser.Transition)
	assert.Equal(t, types.TransitionSlide, browser.Transition.Type)
	assert.Equal(t, types.SlideLeft, browser.Transition.Direction)
	assert.Equal(t, ".mobile-btn", browser.SelectorOverrides["mobile"]["#btn"])
	require.Len(t, browser.Steps, 5)

	nav := browser.Steps[0].(types.NavigateStep)
	assert.Equal(t, 2.0, nav.Duration)
	assert.Equal(t, &types.WaitFor{Selector: "#email", State: types.WaitVisible, Timeout: 5000}, nav.WaitFor)

	fill := browser.Steps[1].(types.FillStep)
	assert.Equal(t, 80, fill.TypeSpeed)
	assert.Equal(t, &types.Caption{Text: "Enter your email", Position: types.CaptionBottom, Style: "bar", Animation: "slideUp"}, fill.Caption)

	click := browser.Steps[2].(types.ClickStep)
	assert.True(t, click.Highlight)
	assert.Equal(t, types.WaitAttached, click.WaitFor.State)
	assert.Equal(t, 5000, click.WaitFor.Timeout)

	scroll := browser.Steps[3].(types.ScrollStep)
	assert.True(t, scroll.Smooth)
	assert.Equal(t, 400.0, scroll.Y)

	wait := browser.Steps[4].(types.WaitStep)
	assert.Equal(t, 1000, wait.Timeout)
}

func TestParseDefaultOutput(t *testing.T) {
	s, err := Parse([]byte(`
meta:
  title: Minimal
scenes:
  - type: title
    id: intro
    heading: Hi
`), "")
	require.NoError(t, err)
	assert.Equal(t, 30, s.Output.FPS)
	require.Len(t, s.Output.Variants, 1)
	assert.Equal(t, "desktop", s.Output.Variants[0].ID)
	assert.Equal(t, "#0f172a", s.Brand.BackgroundColor)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty",
			input:    "",
			expected: nil,
		},
		{
			name: "invalid values",
			input: `
meta:
  title: ""
output:
  fps: 0
  variants:
    - id: desktop
      width: 100
      height: 100
      aspectRatio: wide
scenes:
  - type: title
    id: intro
    heading: Hi
  - type: browser
    id: intro
    url: not-a-url
    steps: []
`,
			expected: []string{
				"meta.title: must not be empty",
				"output.fps: must be a positive integer",
				`output.variants.0.aspectRatio: must look like 16:9, got "wide"`,
				`scenes.1.id: duplicate scene id "intro"`,
				`scenes.1.url: invalid url "not-a-url"`,
				"scenes.1.steps: at least one step is required",
			},
		},
		{
			name: "invalid steps",
			input: `
meta:
  title: Steps
scenes:
  - type: browser
    id: b
    url: https://example.com
    selectorOverrides:
      tablet:
        a: b
    steps:
      - action: click
        selector: ""
        waitFor:
          selector: "#x"
          state: gone
      - action: navigate
        url: https://example.com
        transition: fade
`,
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "test.yaml")
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			for _, e := range tt.expected {
				assert.Contains(t, pe.Issues, e)
			}
		})
	}
}

func TestValidateSteps(t *testing.T) {
	s := &types.Script{
		Meta:   types.Meta{Title: "Steps"},
		Output: types.DefaultOutputConfig(),
		Scenes: types.SceneList{
			&types.BrowserScene{
				ID:                "b",
				URL:               "https://example.com",
				SelectorOverrides: map[string]map[string]string{"tablet": {"a": "b"}},
				Steps: types.StepList{
					types.ClickStep{
						StepCommon: types.StepCommon{Duration: 2},
						WaitFor:    &types.WaitFor{Selector: "#x", State: "gone", Timeout: 5000},
					},
					types.WaitStep{StepCommon: types.StepCommon{Duration: 0}, Timeout: 1000},
				},
				Transition: &types.Transition{Type: "spin"},
			},
		},
	}
	err := Validate(s)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.ElementsMatch(t, []string{
		`scenes.0.transition.type: unknown transition "spin"`,
		`scenes.0.selectorOverrides: unknown variant "tablet"`,
		`scenes.0.steps.0.waitFor.state: unknown state "gone"`,
		"scenes.0.steps.0.selector: must not be empty",
		"scenes.0.steps.1.duration: must be positive",
	}, pe.Issues)
	assert.Contains(t, err.Error(), "script validation failed:\n  - ")
}

func TestUnknownStepAction(t *testing.T) {
	_, err := Parse([]byte(`
meta:
  title: x
scenes:
  - type: browser
    id: b
    url: https://example.com
    steps:
      - action: hover
        selector: a
`), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown step action "hover"`)
}

func TestParseFileResolvesLogo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tour.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScript), 0644))

	s, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logo.png"), s.Brand.Logo)

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Message, "cannot read file")
}

func TestTemplateIsValid(t *testing.T) {
	s, err := Parse(Template(`my "tutorial"`), "template")
	require.NoError(t, err)
	assert.Equal(t, `my "tutorial"`, s.Meta.Title)
	assert.Len(t, s.Scenes, 3)
	assert.Equal(t, "my-tutorial.scenecaster.yaml", TemplateFilename("my-tutorial"))
}
