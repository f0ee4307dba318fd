package pipeline

import (
	"fmt"
	"strings"

	"github.com/jakopako/scenecaster/internal/utils"
)

// FilterError is returned if a variant or scene filter names ids that are
// not part of the script.
type FilterError struct {
	// Kind is either "variant" or "scene".
	Kind      string
	Unknown   []string
	Available []string
}

func (e *FilterError) Error() string {
	quoted := make([]string, len(e.Unknown))
	for i, id := range e.Unknown {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	noun := e.Kind
	if len(e.Unknown) > 1 {
		noun += "s"
	}
	msg := fmt.Sprintf("unknown %s %s. Available %ss: %s", noun, strings.Join(quoted, ", "), e.Kind, strings.Join(e.Available, ", "))
	if len(e.Unknown) == 1 {
		if match, ok := utils.ClosestMatch(e.Unknown[0], e.Available); ok {
			msg += fmt.Sprintf(" (did you mean %q?)", match)
		}
	}
	return msg
}
