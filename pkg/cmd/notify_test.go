package cmd

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/subwatch"
)

type botAPI struct {
	mu    sync.Mutex
	calls []string
	texts []string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.ParseMultipartForm(1 << 20)
	} else {
		r.ParseForm()
	}

	b.mu.Lock()
	b.calls = append(b.calls, path.Base(r.URL.Path))
	b.texts = append(b.texts, r.FormValue("text"))
	b.mu.Unlock()

	fmt.Fprint(w, `{"ok":true}`)
}

type notifyTester struct {
	args []string
	// leave the chat id unset
	noCredentials bool
	err           error
	failed        bool
	calls         string
	text          string
}

func (t *notifyTester) runTest(test *testing.T, name string) {
	api := &botAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	env := map[string]string{
		"TELEGRAM_TOKEN":   "TOKEN",
		"TELEGRAM_API_URL": srv.URL,
	}
	if !t.noCredentials {
		env["TELEGRAM_CHAT_ID"] = "42"
	}

	_, err := executeRoot(test, env, append([]string{"notify"}, t.args...)...)
	switch {
	case t.err != nil && !errors.Is(err, t.err):
		test.Errorf("[%s] expected error %v, got %v", name, t.err, err)
	case t.failed && err == nil:
		test.Errorf("[%s] expected an error", name)
	case !t.failed && t.err == nil && err != nil:
		test.Errorf("[%s] unexpected error %v", name, err)
	}

	if got := strings.Join(api.calls, ","); got != t.calls {
		test.Errorf("[%s] expected calls %q, got %q", name, t.calls, got)
	}
	if t.text != "" && (len(api.texts) == 0 || !strings.Contains(api.texts[0], t.text)) {
		test.Errorf("[%s] expected text containing %q, got %q", name, t.text, api.texts)
	}
}

var notifyTests = map[string]*notifyTester{
	"message": {
		args:  []string{"backup finished"},
		calls: "sendMessage",
		text:  "backup finished",
	},
	"alert": {
		args:  []string{"disk almost full", "warning"},
		calls: "sendMessage",
		text:  "*WARNING*\n📋 *System Alert*",
	},
	"report": {
		args:  []string{"--domain", "example.com", "--subdomains", "a.example.com, b.example.com"},
		calls: "sendDocument",
	},
	"no-message": {
		failed: true,
	},
	"too-many-args": {
		args:   []string{"a", "INFO", "extra"},
		failed: true,
	},
	"message-and-domain": {
		args:   []string{"hello", "--domain", "example.com", "--subdomains", "a.example.com"},
		failed: true,
	},
	"domain-alone": {
		args:   []string{"--domain", "example.com"},
		failed: true,
	},
	"blank-subdomains": {
		args:   []string{"--domain", "example.com", "--subdomains", " , "},
		failed: true,
	},
	"no-credentials": {
		args:          []string{"hello"},
		noCredentials: true,
		err:           subwatch.ErrMissingCredentials,
	},
}

func TestNotifyCommand(t *testing.T) {
	for name, cfg := range notifyTests {
		cfg.runTest(t, name)
	}
}

func TestSplitSubdomains(t *testing.T) {
	got := splitSubdomains([]string{" a.example.com", "", "b.example.com ", "  "})
	if strings.Join(got, ",") != "a.example.com,b.example.com" {
		t.Errorf("unexpected subdomains %v", got)
	}
}
