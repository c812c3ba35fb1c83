package dispatch

import (
	"fmt"
	"strings"
)

// Params holds the named path parameters bound by a route match.
type Params map[string]string

// pattern is a parsed route path. Segments starting with ':' bind one non-empty path
// segment; a trailing '*' binds the rest of the path under the name "*".
type pattern struct {
	raw      string
	segments []string
	wildcard bool
}

func parsePattern(raw string) (pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return pattern{}, fmt.Errorf("dispatch: pattern %q must start with /", raw)
	}

	segments := strings.Split(raw[1:], "/")
	p := pattern{raw: raw}
	seen := make(map[string]bool)

	for i, segment := range segments {
		switch {
		case segment == "*":
			if i != len(segments)-1 {
				return pattern{}, fmt.Errorf("dispatch: pattern %q has a wildcard before the last segment", raw)
			}

			p.wildcard = true

			continue
		case strings.HasPrefix(segment, ":"):
			name := segment[1:]
			if name == "" {
				return pattern{}, fmt.Errorf("dispatch: pattern %q has an unnamed parameter", raw)
			}

			if seen[name] {
				return pattern{}, fmt.Errorf("dispatch: pattern %q repeats parameter %q", raw, name)
			}

			seen[name] = true
		}

		p.segments = append(p.segments, segment)
	}

	return p, nil
}

func (p pattern) match(path string) (Params, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	if len(parts) < len(p.segments) || (!p.wildcard && len(parts) != len(p.segments)) {
		return nil, false
	}

	params := make(Params)

	for i, segment := range p.segments {
		part := parts[i]

		if name, ok := strings.CutPrefix(segment, ":"); ok {
			if part == "" {
				return nil, false
			}

			params[name] = part

			continue
		}

		if segment != part {
			return nil, false
		}
	}

	if p.wildcard {
		params["*"] = strings.Join(parts[len(p.segments):], "/")
	}

	return params, true
}
