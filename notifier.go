package subwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

var (
	ErrChatAPI = errors.New("chat api request failed")
)

const (
	messageTimeout  = 10 * time.Second
	documentTimeout = 30 * time.Second
	// the bot api floods out above roughly one message per second per chat
	sendInterval = time.Second
	reportRule   = "----------------------------------------"
)

type Level string

const (
	INFO    Level = "INFO"
	WARNING Level = "WARNING"
	ERROR   Level = "ERROR"
	SUCCESS Level = "SUCCESS"
	ALERT   Level = "ALERT"
)

var levelEmoji = map[Level]string{
	INFO:    "ℹ️",
	WARNING: "⚠️",
	ERROR:   "❌",
	SUCCESS: "✅",
	ALERT:   "🚨",
}

func (l Level) Emoji() string {
	if e, ok := levelEmoji[Level(strings.ToUpper(string(l)))]; ok {
		return e
	}
	return "📢"
}

// New hostnames found for a domain
type Report struct {
	Domain string
	Hosts  Hostnames
	// New hostnames answering DNS, -1 when not checked
	Resolving int
	Time      time.Time
}

func (r Report) Caption() string {
	return fmt.Sprintf("🔍 Found %d new subdomains for %s", r.Hosts.Len(), r.Domain)
}

func (r Report) Filename() string {
	return fmt.Sprintf("%s_new_subdomains_%s.txt", r.Domain, r.Time.Format(time.DateOnly))
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 New subdomains found for %s\n", r.Domain)
	fmt.Fprintf(&b, "Domain: %s\n", r.Domain)
	fmt.Fprintf(&b, "Generated: %s\n", r.Time.Format(time.DateTime))
	fmt.Fprintf(&b, "New subdomains: %d\n", r.Hosts.Len())
	if r.Resolving >= 0 {
		fmt.Fprintf(&b, "Resolving: %d/%d\n", r.Resolving, r.Hosts.Len())
	}
	b.WriteString(reportRule + "\n")
	for _, h := range r.Hosts.Sorted() {
		b.WriteString(h + "\n")
	}
	b.WriteString(reportRule + "\n")
	fmt.Fprintf(&b, "📊 Total new subdomains: %d\n", r.Hosts.Len())
	return b.String()
}

type Notifier interface {
	// Plain text message
	Message(ctx context.Context, text string) error
	// Formatted message with a level, a title and a timestamp
	Alert(ctx context.Context, title, message string, level Level) error
	// New hostnames as a file attachment, falling back to a plain message
	Report(ctx context.Context, r Report) error
}

// Telegram bot api client
type telegramNotifier struct {
	conf    TelegramSettings
	client  *http.Client
	limiter *rate.Limiter
	fs      afero.Fs
	tmpDir  string
	now     func() time.Time
}

func NewNotifier(conf TelegramSettings, fs afero.Fs) *telegramNotifier {
	if conf.APIURL == "" {
		conf.APIURL = DefaultTelegramAPI
	}
	return &telegramNotifier{
		conf:    conf,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Every(sendInterval), 1),
		fs:      fs,
		tmpDir:  os.TempDir(),
		now:     time.Now,
	}
}

func (n *telegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.conf.APIURL, n.conf.Token, method)
}

func (n *telegramNotifier) credentials() error {
	if n.conf.Token == "" || n.conf.ChatID == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (n *telegramNotifier) Message(ctx context.Context, text string) error {
	if err := n.sendMessage(ctx, text, ""); err != nil {
		log.Error().Err(err).Msg("failed to send message")
		return err
	}
	log.Info().Msg("message sent")
	return nil
}

func (n *telegramNotifier) Alert(ctx context.Context, title, message string, level Level) error {
	level = Level(strings.ToUpper(string(level)))
	text := fmt.Sprintf("%s *%s*\n📋 *%s*\n⏰ %s\n💬 %s",
		level.Emoji(), level, title, n.now().Format(time.DateTime), message)

	if err := n.sendMessage(ctx, text, "Markdown"); err != nil {
		log.Error().Err(err).Str("level", string(level)).Msg("failed to send alert")
		return err
	}
	log.Info().Str("level", string(level)).Msg("alert sent")
	return nil
}

func (n *telegramNotifier) Report(ctx context.Context, r Report) error {
	if r.Hosts.Len() == 0 {
		return nil
	}
	if r.Time.IsZero() {
		r.Time = n.now()
	}

	err := n.sendReport(ctx, r)
	if err == nil {
		log.Info().Str("domain", r.Domain).Int("count", r.Hosts.Len()).Msg("report sent")
		return nil
	}
	log.Error().Err(err).Str("domain", r.Domain).Msg("failed to send report, falling back to a message")

	text := fmt.Sprintf("⚠️ Found %d new subdomains for %s, but the file attachment failed.", r.Hosts.Len(), r.Domain)
	if ferr := n.sendMessage(ctx, text, ""); ferr != nil {
		log.Error().Err(ferr).Str("domain", r.Domain).Msg("fallback message failed")
		return errors.Wrapf(ferr, "report for %s not delivered (attachment: %v)", r.Domain, err)
	}
	log.Warn().Str("domain", r.Domain).Msg("report delivered as a plain message")
	return nil
}

func (n *telegramNotifier) sendMessage(ctx context.Context, text, parseMode string) error {
	if err := n.credentials(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("chat_id", n.conf.ChatID)
	form.Set("text", text)
	if parseMode != "" {
		form.Set("parse_mode", parseMode)
	}

	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to build message request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return n.do(req, "sendMessage")
}

// Writes the report to a temporary file and uploads it. The file is removed
// whatever the outcome.
func (n *telegramNotifier) sendReport(ctx context.Context, r Report) error {
	if err := n.credentials(); err != nil {
		return err
	}

	f, err := afero.TempFile(n.fs, n.tmpDir, "subwatch-*.txt")
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer func() {
		f.Close()
		if err := n.fs.Remove(f.Name()); err != nil {
			log.Warn().Err(err).Str("file", f.Name()).Msg("failed to remove report file")
		}
	}()

	if _, err := f.WriteString(r.String()); err != nil {
		return errors.Wrap(err, "failed to write report file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to rewind report file")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", n.conf.ChatID); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	if err := mw.WriteField("caption", r.Caption()); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	part, err := mw.CreateFormFile("document", r.Filename())
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	if _, err := io.Copy(part, f); err != nil {
		return errors.Wrap(err, "failed to read report file")
	}
	if err := mw.Close(); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}

	ctx, cancel := context.WithTimeout(ctx, documentTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendDocument"), &body)
	if err != nil {
		return errors.Wrap(err, "failed to build document request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return n.do(req, "sendDocument")
}

type apiResponse struct {
	OK          *bool  `json:"ok"`
	Description string `json:"description"`
}

func (n *telegramNotifier) do(req *http.Request, method string) error {
	if err := n.limiter.Wait(req.Context()); err != nil {
		return errors.Wrapf(err, "%s not sent", method)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		// the url carries the bot token, keep it out of logs
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return errors.Wrapf(ErrChatAPI, "%s: %v", method, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var api apiResponse
	_ = json.Unmarshal(data, &api)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		desc := api.Description
		if desc == "" {
			desc = strings.TrimSpace(string(data))
		}
		return errors.Wrapf(ErrChatAPI, "%s: status %d: %s", method, resp.StatusCode, desc)
	}
	if api.OK != nil && !*api.OK {
		return errors.Wrapf(ErrChatAPI, "%s: %s", method, api.Description)
	}
	return nil
}
