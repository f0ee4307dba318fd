package script

import (
	"bytes"
	"text/template"
)

var starter = template.Must(template.New("starter").Parse(`meta:
  title: {{ printf "%q" .Name }}

brand:
  primaryColor: "#1e40af"
  backgroundColor: "#0f172a"
  textColor: "#f8fafc"
  fontFamily: "Inter"

output:
  fps: 30
  variants:
    - id: desktop
      width: 1920
      height: 1080
      aspectRatio: "16:9"
  transition:
    type: fade
    duration: 0.3

scenes:
  - type: title
    id: intro
    duration: 4
    heading: {{ printf "%q" .Name }}
    subheading: "A step-by-step guide"

  - type: browser
    id: main
    url: "https://example.com"
    steps:
      - action: navigate
        url: "https://example.com"
        duration: 3
        waitFor: "h1"
        caption:
          text: "Open the website"
          position: bottom
          style: bar
          animation: slideUp

  - type: title
    id: outro
    duration: 3
    heading: "All done!"
    variant: outro
`))

// Template returns a starter script for a project called name.
func Template(name string) []byte {
	var b bytes.Buffer
	// the template only prints strings, it cannot fail
	_ = starter.Execute(&b, struct{ Name string }{name})
	return b.Bytes()
}

// TemplateFilename is the file name `scenecaster init` writes to.
func TemplateFilename(name string) string {
	return name + ".scenecaster.yaml"
}
