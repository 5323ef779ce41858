package subwatch

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrToolTimeout = errors.New("tool timed out")
)

const (
	fastToolTimeout = 300 * time.Second
	slowToolTimeout = 600 * time.Second
	// how long to wait for output pipes after a timed out tool was killed
	toolWaitDelay = 5 * time.Second
)

// An external enumeration program
type Tool struct {
	Name string
	// Executable path or name looked up in PATH
	Path    string
	Args    func(domain string) []string
	Timeout time.Duration
	Output  OutputReader
	// Where to get the tool
	Home string
}

// Subfinder, amass, findomain and bbot, in that order. Tools set to "-" are
// left out.
func DefaultTools(paths ToolPaths) []Tool {
	tools := []Tool{
		{
			Name: "subfinder",
			Path: paths.Subfinder,
			Args: func(d string) []string {
				return []string{"-silent", "-d", d}
			},
			Timeout: fastToolTimeout,
			Output:  PlainLines,
			Home:    "https://github.com/projectdiscovery/subfinder",
		},
		{
			Name: "amass",
			Path: paths.Amass,
			Args: func(d string) []string {
				return []string{"enum", "-passive", "-norecursive", "-d", d}
			},
			Timeout: slowToolTimeout,
			Output:  PlainLines,
			Home:    "https://github.com/OWASP/Amass",
		},
		{
			Name: "findomain",
			Path: paths.Findomain,
			Args: func(d string) []string {
				return []string{"-t", d, "-q"}
			},
			Timeout: fastToolTimeout,
			Output:  PlainLines,
			Home:    "https://github.com/Findomain/Findomain",
		},
		{
			Name: "bbot",
			Path: paths.Bbot,
			Args: func(d string) []string {
				return []string{"-t", d, "-f", "json"}
			},
			Timeout: slowToolTimeout,
			Output:  JSONLines,
			Home:    "https://github.com/blacklanternsecurity/bbot",
		},
	}

	return Filter(tools, func(t Tool) bool {
		return t.Path != Disabled && t.Path != ""
	})
}

type ToolRunner interface {
	// Runs every tool against the domain, one after the other
	Run(ctx context.Context, domain string) []ToolResult
}

type execRunner struct {
	tools     []Tool
	waitDelay time.Duration
}

func NewToolRunner(tools []Tool) *execRunner {
	return &execRunner{tools: tools, waitDelay: toolWaitDelay}
}

func (r *execRunner) Run(ctx context.Context, domain string) []ToolResult {
	results := make([]ToolResult, 0, len(r.tools))
	for _, t := range r.tools {
		if ctx.Err() != nil {
			break
		}

		log.Info().Str("tool", t.Name).Str("domain", domain).Msg("running tool")
		res := r.runTool(ctx, t, domain)
		if res.Err != nil {
			log.Error().Err(res.Err).Str("tool", t.Name).Str("domain", domain).Msg("tool failed")
		} else {
			log.Debug().Str("tool", t.Name).Int("lines", len(res.Lines)).Dur("took", res.Duration).Msg("tool finished")
		}
		results = append(results, res)
	}
	return results
}

func (r *execRunner) runTool(ctx context.Context, t Tool, domain string) ToolResult {
	res := ToolResult{Tool: t.Name}

	tctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(tctx, t.Path, t.Args(domain)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)

	switch {
	case err == nil:
	case errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Err = errors.Wrapf(ErrToolTimeout, "%s after %s", t.Name, t.Timeout)
		return res
	case ctx.Err() != nil:
		res.Err = errors.Wrapf(ctx.Err(), "%s interrupted", t.Name)
		return res
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.Err = errors.Wrapf(err, "failed to run %s", t.Name)
			return res
		}
		// a non-zero exit still counts, the tool may have printed results
		res.ExitCode = exitErr.ExitCode()
		log.Warn().
			Str("tool", t.Name).
			Int("code", res.ExitCode).
			Str("stderr", tail(stderr.String(), 200)).
			Msg("tool exited with non-zero status")
	}

	res.Lines = collect(t.Output(&stdout))
	return res
}

type ToolStatus struct {
	Tool Tool
	// Resolved executable, empty when not found
	Resolved string
	Err      error
}

// Looks up every tool executable
func CheckTools(tools []Tool) []ToolStatus {
	out := make([]ToolStatus, 0, len(tools))
	for _, t := range tools {
		p, err := exec.LookPath(t.Path)
		out = append(out, ToolStatus{Tool: t, Resolved: p, Err: err})
	}
	return out
}

// Filter values from a slice
func Filter[T any](s []T, fn func(T) bool) []T {
	var r []T
	for _, t := range s {
		if fn(t) {
			r = append(r, t)
		}
	}
	return r
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
