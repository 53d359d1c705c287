// Package widget implements the interaction state of launcher controls as
// small state machines. Each machine exposes its derived state plus prop
// builders that describe the attributes a renderer should apply.
package widget

import "fmt"

// Props are the attributes of one widget part, keyed like HTML attributes
// (id, role, aria-*, data-*).
type Props map[string]any

// Bool returns a boolean attribute, false when absent
func (p Props) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// String returns an attribute formatted as a string, "" when absent
func (p Props) String(name string) string {
	v, ok := p[name]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Has reports whether name is set
func (p Props) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// flag sets a data attribute to "" when on and leaves it out otherwise
func (p Props) flag(name string, on bool) Props {
	if on {
		p[name] = ""
	}
	return p
}

func parts(scope, part string) Props {
	return Props{"data-scope": scope, "data-part": part}
}
