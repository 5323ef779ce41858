package subwatch

import (
	"sort"
	"strings"
)

// Set of discovered hostnames. Values are stored trimmed, nothing else is
// normalized.
type Hostnames map[string]struct{}

func NewHostnames(names ...string) Hostnames {
	h := make(Hostnames, len(names))
	for _, n := range names {
		h.Add(n)
	}
	return h
}

func (h Hostnames) Add(name string) {
	h[name] = struct{}{}
}

func (h Hostnames) Has(name string) bool {
	_, ok := h[name]
	return ok
}

func (h Hostnames) Len() int {
	return len(h)
}

// Sorted ascending
func (h Hostnames) Sorted() []string {
	out := make([]string, 0, len(h))
	for n := range h {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Hostnames in h that are not in prev
func (h Hostnames) Diff(prev Hostnames) Hostnames {
	out := make(Hostnames)
	for n := range h {
		if !prev.Has(n) {
			out.Add(n)
		}
	}
	return out
}

// Keeps a trimmed line when it is not empty and contains a dot.
func cleanHostname(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, ".") {
		return "", false
	}
	return line, true
}

// Unions the output of every tool into a single set of candidate hostnames.
// Failed tools carry no lines and add nothing.
func Aggregate(results ...ToolResult) Hostnames {
	h := make(Hostnames)
	for _, r := range results {
		for _, line := range r.Lines {
			if name, ok := cleanHostname(line); ok {
				h.Add(name)
			}
		}
	}
	return h
}
