package subwatch

import (
	"reflect"
	"testing"
)

type aggregateTester struct {
	results []ToolResult
	want    []string
}

func (t *aggregateTester) runTest(test *testing.T, name string) {
	got := Aggregate(t.results...).Sorted()
	if len(got) == 0 && len(t.want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, t.want) {
		test.Errorf("[%s] expected %v, got %v", name, t.want, got)
	}
}

var aggregateTests = map[string]*aggregateTester{
	"union": {
		results: []ToolResult{
			{Tool: "a", Lines: []string{"a.example.com", "b.example.com"}},
			{Tool: "b", Lines: []string{"b.example.com", "c.example.com"}},
		},
		want: []string{"a.example.com", "b.example.com", "c.example.com"},
	},
	"trim-and-filter": {
		results: []ToolResult{
			{Tool: "a", Lines: []string{"  a.example.com\t", "", "   ", "localhost", "no-dot-here", "b.example.com\r"}},
		},
		want: []string{"a.example.com", "b.example.com"},
	},
	"no-case-folding": {
		results: []ToolResult{
			{Tool: "a", Lines: []string{"A.example.com", "a.example.com", "a.example.com."}},
		},
		want: []string{"A.example.com", "a.example.com", "a.example.com."},
	},
	"failed-tool": {
		results: []ToolResult{
			{Tool: "timeout", Err: ErrToolTimeout},
			{Tool: "ok", Lines: []string{"sub1.example.com", "sub2.example.com"}},
		},
		want: []string{"sub1.example.com", "sub2.example.com"},
	},
	"empty": {},
}

func TestAggregate(t *testing.T) {
	for name, cfg := range aggregateTests {
		cfg.runTest(t, name)
	}
}

type diffTester struct {
	current  []string
	previous []string
	want     []string
}

func (t *diffTester) runTest(test *testing.T, name string) {
	cur, prev := NewHostnames(t.current...), NewHostnames(t.previous...)
	got := cur.Diff(prev)

	if got.Len() != len(t.want) {
		test.Errorf("[%s] expected %v, got %v", name, t.want, got.Sorted())
		return
	}
	for _, w := range t.want {
		if !got.Has(w) {
			test.Errorf("[%s] missing %s in %v", name, w, got.Sorted())
		}
	}
	for n := range got {
		if prev.Has(n) {
			test.Errorf("[%s] %s is in the previous set", name, n)
		}
		if !cur.Has(n) {
			test.Errorf("[%s] %s is not in the current set", name, n)
		}
	}
}

var diffTests = map[string]*diffTester{
	"new-one": {
		current:  []string{"a.example.com", "c.example.com"},
		previous: []string{"a.example.com", "b.example.com"},
		want:     []string{"c.example.com"},
	},
	"subset": {
		current:  []string{"a.example.com"},
		previous: []string{"a.example.com", "b.example.com"},
	},
	"equal": {
		current:  []string{"a.example.com", "b.example.com"},
		previous: []string{"b.example.com", "a.example.com"},
	},
	"first-scan": {
		current: []string{"a.example.com", "b.example.com"},
		want:    []string{"a.example.com", "b.example.com"},
	},
	"case-sensitive": {
		current:  []string{"A.example.com"},
		previous: []string{"a.example.com"},
		want:     []string{"A.example.com"},
	},
}

func TestDiff(t *testing.T) {
	for name, cfg := range diffTests {
		cfg.runTest(t, name)
	}
}
