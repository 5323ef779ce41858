package subwatch

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// A domain configured for periodic enumeration.
type Target struct {
	Domain      string     `json:"domain"`
	Enabled     bool       `json:"enabled"`
	LastScanned *Timestamp `json:"last_scanned"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// Scan time as written in the targets file. Strings that are not a known
// timestamp layout are kept verbatim and written back unchanged.
type Timestamp struct {
	time.Time
	raw string
}

// ISO 8601 with or without a zone, the second form is what a hand edit or
// a naive local clock produces. Times without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// Verbatim value when the string could not be parsed
func (ts Timestamp) Raw() string {
	return ts.raw
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrapf(err, "invalid timestamp %s", data)
	}

	*ts = Timestamp{raw: s}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts = Timestamp{Time: t}
			return nil
		}
	}
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Time.IsZero() {
		return json.Marshal(ts.raw)
	}
	return ts.Time.MarshalJSON()
}

// The persisted list of targets. Config is not used by the scanner, it is
// kept as-is so rewriting the file does not lose it.
type TargetList struct {
	Targets []*Target       `json:"targets"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Enabled targets with a domain, in file order
func (l *TargetList) Active() []*Target {
	return Filter(l.Targets, func(t *Target) bool {
		return t != nil && t.Enabled && t.Domain != ""
	})
}

// Outcome of running one enumeration tool against a domain
type ToolResult struct {
	Tool     string
	Lines    []string
	ExitCode int
	Duration time.Duration
	// Set when the tool contributed nothing (spawn failure, timeout)
	Err error
}

func (r ToolResult) OK() bool {
	return r.Err == nil
}

// Summary of a tool run stored with the scan record
type ToolStat struct {
	Tool     string `json:"tool"`
	Lines    int    `json:"lines"`
	ExitCode int    `json:"exit_code"`
	Millis   int64  `json:"ms"`
	Error    string `json:"error,omitempty"`
}

func newToolStat(r ToolResult) ToolStat {
	st := ToolStat{
		Tool:     r.Tool,
		Lines:    len(r.Lines),
		ExitCode: r.ExitCode,
		Millis:   r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		st.Error = r.Err.Error()
	}
	return st
}

// One domain scan as recorded in the history database.
type ScanRecord struct {
	gorm.Model

	// Pass over the target list this scan belongs to
	RunID  string `gorm:"index"`
	Domain string `gorm:"index"`

	Total    int
	Previous int
	New      int
	// Number of new hostnames answering DNS. -1 if not checked.
	Resolving int

	NewHosts datatypes.JSON
	Tools    datatypes.JSON

	Notified bool
	Error    string
}
