package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/twhuang/notidrawer/internal/model"
	"github.com/twhuang/notidrawer/internal/source"
)

// defaultLookback bounds the search window when no Since watermark is
// supplied.
const defaultLookback = 7 * 24 * time.Hour

// defaultFetchLimit caps a single fetch when the caller does not set one.
const defaultFetchLimit = 50

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// Adapter implements source.Source for an IMAP mailbox. Each mail
// message becomes a standalone notification event keyed by its
// Message-ID.
type Adapter struct {
	client   *IMAPClient
	sourceID string
	username string
	appName  string
}

// NewAdapter creates an email source adapter from its configuration.
// The password is supplied separately so it never rides in the config
// file.
func NewAdapter(cfg model.SourceConfig, password string) *Adapter {
	conf := cfg.Config
	useTLS := conf["tls"] != "false"

	appName := cfg.Name
	if appName == "" {
		appName = "Mail"
	}

	return &Adapter{
		client: NewIMAPClient(
			conf["host"], conf["port"],
			conf["username"], password,
			conf["mailbox"], useTLS,
		),
		sourceID: cfg.ID,
		username: conf["username"],
		appName:  appName,
	}
}

// Type returns the source type identifier for Email.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeEmail
}

// ValidateConnection verifies IMAP credentials by connecting and
// authenticating. Returns the username on success.
func (a *Adapter) ValidateConnection(
	ctx context.Context,
) (string, error) {
	client, err := a.client.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating email connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	return a.username, nil
}

// FetchEvents retrieves mail received after opts.Since and maps each
// message to a notification event. Messages at or before the watermark
// are dropped so a repeated poll does not resurface mail the user has
// already read locally.
func (a *Adapter) FetchEvents(
	ctx context.Context, opts source.FetchOptions,
) ([]model.NotificationEvent, error) {
	limit := opts.Limit
	if limit < 1 {
		limit = defaultFetchLimit
	}

	since := time.Now().Add(-defaultLookback)
	if opts.Since > 0 {
		since = time.UnixMilli(opts.Since)
	}

	// IMAP SINCE has day granularity; search from the start of the
	// watermark day and filter precisely below.
	envelopes, err := a.client.FetchRecent(ctx, since.Truncate(24*time.Hour), limit)
	if err != nil {
		return nil, fmt.Errorf("fetching email events: %w", err)
	}

	events := make([]model.NotificationEvent, 0, len(envelopes))
	for _, env := range envelopes {
		if !env.Date.After(since) {
			continue
		}
		events = append(events, a.envelopeToEvent(env))
	}

	return events, nil
}

// envelopeToEvent maps a mail envelope to a notification event.
func (a *Adapter) envelopeToEvent(env Envelope) model.NotificationEvent {
	id := env.MessageID
	if id == "" {
		id = fmt.Sprintf("uid-%d", env.UID)
	}

	content := env.Snippet
	if content == "" {
		content = env.Subject
	}

	return model.NotificationEvent{
		Key:      fmt.Sprintf("email:%s:%s", a.sourceID, id),
		PkgName:  "email/" + a.sourceID,
		AppName:  a.appName,
		Category: model.CategoryEmail,
		Title:    env.Subject,
		Messages: []model.RawMessage{{
			Time:    env.Date.UnixMilli(),
			Sender:  env.From,
			Content: content,
		}},
		PostTime: env.Date.UnixMilli(),
	}
}

// stripHTML removes tags and decodes common entities, approximating the
// text content of an HTML body.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return replacer.Replace(result)
}
