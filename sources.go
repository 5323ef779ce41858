// Tool output readers.
//
// Every enumeration tool writes its findings to stdout. A reader turns that
// output into an iterator of candidate hostnames, so the runner does not need
// to know the format of each tool.
package subwatch

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"strings"
)

type LinesIterator iter.Seq[string]
type OutputReader func(io.Reader) LinesIterator

// Yields each line, unbounded in length, without the line terminator.
func readLines(r io.Reader) iter.Seq[string] {
	br := bufio.NewReader(r)
	return func(yield func(string) bool) {
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				if !yield(strings.TrimRight(line, "\r\n")) {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}

// One hostname per line
func PlainLines(r io.Reader) LinesIterator {
	return LinesIterator(readLines(r))
}

const subdomainEvent = "subdomain"

type jsonEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// One JSON object per line. Only subdomain events with a string payload
// yield a value. Lines that do not parse are skipped.
func JSONLines(r io.Reader) LinesIterator {
	return func(yield func(string) bool) {
		for line := range readLines(r) {
			var ev jsonEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				continue
			}
			if ev.Type != subdomainEvent {
				continue
			}
			name, ok := ev.Data.(string)
			if !ok {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

func collect(it LinesIterator) []string {
	var out []string
	for v := range it {
		out = append(out, v)
	}
	return out
}
