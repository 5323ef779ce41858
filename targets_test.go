package subwatch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type targetsTester struct {
	// file content, nil means no file
	content []byte
	err     error
	domains []string
	active  []string
}

func (t *targetsTester) runTest(test *testing.T, name string) {
	fs := afero.NewMemMapFs()
	if t.content != nil {
		if err := afero.WriteFile(fs, "targets.json", t.content, 0644); err != nil {
			test.Fatal(err)
		}
	}

	list, err := NewTargetStore(fs, "targets.json").Load()
	if t.err != nil {
		if !errors.Is(err, t.err) {
			test.Errorf("[%s] expected error %v, got %v", name, t.err, err)
		}
		return
	}
	if err != nil {
		test.Fatalf("[%s] unexpected error %v", name, err)
	}

	var domains []string
	for _, tg := range list.Targets {
		if tg != nil {
			domains = append(domains, tg.Domain)
		}
	}
	if strings.Join(domains, ",") != strings.Join(t.domains, ",") {
		test.Errorf("[%s] expected domains %v, got %v", name, t.domains, domains)
	}

	var active []string
	for _, tg := range list.Active() {
		active = append(active, tg.Domain)
	}
	if strings.Join(active, ",") != strings.Join(t.active, ",") {
		test.Errorf("[%s] expected active %v, got %v", name, t.active, active)
	}
}

var targetsTests = map[string]*targetsTester{
	"missing": {
		err: ErrTargetsNotFound,
	},
	"invalid": {
		content: []byte(`{"targets": [`),
		err:     ErrInvalidTargets,
	},
	"empty-object": {
		content: []byte(`{}`),
	},
	"mixed": {
		content: []byte(`{
  "targets": [
    {"domain": "a.com", "enabled": true, "last_scanned": null},
    {"domain": "b.com", "enabled": false, "last_scanned": "2024-01-02T03:04:05Z"},
    {"domain": "", "enabled": true, "last_scanned": null},
    {"domain": "c.com", "enabled": true, "last_scanned": null, "priority": "high"},
    null
  ]
}`),
		domains: []string{"a.com", "b.com", "", "c.com"},
		active:  []string{"a.com", "c.com"},
	},
}

func TestTargetStoreLoad(t *testing.T) {
	for name, cfg := range targetsTests {
		cfg.runTest(t, name)
	}
}

func TestTargetStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewTargetStore(fs, "conf/targets.json")

	scanned := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	list := &TargetList{
		Targets: []*Target{
			{Domain: "a.com", Enabled: true, LastScanned: NewTimestamp(scanned), Description: "main", Priority: "high"},
			{Domain: "b.com", Enabled: false},
		},
		Config: json.RawMessage(`{"custom": [1, 2, 3]}`),
	}
	if err := store.Save(list); err != nil {
		t.Fatal(err)
	}

	raw, err := afero.ReadFile(fs, "conf/targets.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n  \"targets\"") {
		t.Errorf("expected 2-space indentation, got %s", raw)
	}
	if !strings.Contains(string(raw), `"last_scanned": null`) {
		t.Errorf("expected null last_scanned for b.com, got %s", raw)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(got.Targets))
	}
	a := got.Targets[0]
	if a.Domain != "a.com" || !a.Enabled || a.Description != "main" || a.Priority != "high" {
		t.Errorf("unexpected target %+v", a)
	}
	if a.LastScanned == nil || !a.LastScanned.Equal(scanned) {
		t.Errorf("expected last scanned %s, got %v", scanned, a.LastScanned)
	}
	if got.Targets[1].LastScanned != nil {
		t.Errorf("expected no last scanned, got %v", got.Targets[1].LastScanned)
	}

	var cfg map[string][]int
	if err := json.Unmarshal(got.Config, &cfg); err != nil || len(cfg["custom"]) != 3 {
		t.Errorf("config block not preserved: %s", got.Config)
	}
}

func TestTargetStoreTemplate(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewTargetStore(fs, "targets.json")

	created, err := store.CreateTemplate()
	if err != nil || !created {
		t.Fatalf("expected template to be created, got %v %v", created, err)
	}

	list, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Targets) != 1 || list.Targets[0].Domain != "example.com" || list.Targets[0].Enabled {
		t.Errorf("unexpected template %+v", list.Targets)
	}
	if len(list.Active()) != 0 {
		t.Errorf("template must not have active targets")
	}

	created, err = store.CreateTemplate()
	if err != nil || created {
		t.Errorf("expected existing file to be kept, got %v %v", created, err)
	}
}

type timestampTester struct {
	value string
	// zero means the value is kept verbatim
	want time.Time
	// re-encoded value
	encoded string
}

func (t *timestampTester) runTest(test *testing.T, name string) {
	fs := afero.NewMemMapFs()
	doc := `{"targets": [{"domain": "a.com", "enabled": true, "last_scanned": ` + t.value + `}]}`
	if err := afero.WriteFile(fs, "targets.json", []byte(doc), 0644); err != nil {
		test.Fatal(err)
	}

	store := NewTargetStore(fs, "targets.json")
	list, err := store.Load()
	if err != nil {
		test.Fatalf("[%s] %v", name, err)
	}

	ts := list.Targets[0].LastScanned
	if ts == nil {
		test.Fatalf("[%s] expected a timestamp", name)
	}
	if !ts.Equal(t.want) {
		test.Errorf("[%s] expected %s, got %s", name, t.want, ts.Time)
	}

	if err := store.Save(list); err != nil {
		test.Fatal(err)
	}
	raw, _ := afero.ReadFile(fs, "targets.json")
	if !strings.Contains(string(raw), `"last_scanned": `+t.encoded) {
		test.Errorf("[%s] expected %s after rewrite, got %s", name, t.encoded, raw)
	}
}

var timestampTests = map[string]*timestampTester{
	"rfc3339": {
		value:   `"2024-06-01T10:00:00Z"`,
		want:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		encoded: `"2024-06-01T10:00:00Z"`,
	},
	"no-zone": {
		value:   `"2024-06-01T10:00:00"`,
		want:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		encoded: `"2024-06-01T10:00:00Z"`,
	},
	"microseconds": {
		value:   `"2024-06-01T10:00:00.123456"`,
		want:    time.Date(2024, 6, 1, 10, 0, 0, 123456000, time.UTC),
		encoded: `"2024-06-01T10:00:00.123456Z"`,
	},
	"space-separated": {
		value:   `"2024-06-01 10:00:00"`,
		want:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		encoded: `"2024-06-01T10:00:00Z"`,
	},
	"empty": {
		value:   `""`,
		encoded: `""`,
	},
	"garbage": {
		value:   `"last tuesday"`,
		encoded: `"last tuesday"`,
	},
}

func TestTimestamp(t *testing.T) {
	for name, cfg := range timestampTests {
		cfg.runTest(t, name)
	}
}
