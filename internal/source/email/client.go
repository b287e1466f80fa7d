package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/twhuang/notidrawer/internal/source"
)

// snippetLimit caps the body excerpt carried on each envelope.
const snippetLimit = 200

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	mailbox  string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration. An empty
// mailbox defaults to INBOX.
func NewIMAPClient(
	host, port, username, password, mailbox string, tls bool,
) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		mailbox:  mailbox,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			SourceType: source.SourceTypeEmail,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// FetchRecent connects to IMAP, selects the configured mailbox, searches
// for messages received after since, and returns their envelopes along
// with a plain-text snippet of each body. The body sections are fetched
// with Peek so the server-side seen state is left untouched.
func (c *IMAPClient) FetchRecent(
	ctx context.Context, since time.Time, limit int,
) ([]Envelope, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		Since: since,
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Limit the number of UIDs to fetch (take most recent)
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var envelopes []Envelope
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		env := envelopeFromBuffer(buf)
		if raw := buf.FindBodySection(bodySection); raw != nil {
			env.Snippet = snippetFromBody(raw)
		}
		envelopes = append(envelopes, env)
	}

	if err := fetchCmd.Close(); err != nil {
		return envelopes, fmt.Errorf("fetching messages: %w", err)
	}

	return envelopes, nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				env.From = from.Name
			} else {
				env.From = from.Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		if flag == imap.FlagSeen {
			env.Seen = true
		}
	}

	return env
}

// snippetFromBody parses a raw RFC 2822 message using go-message and
// returns a whitespace-collapsed excerpt of the first text part. HTML
// parts are used only when no plain-text part exists.
func snippetFromBody(raw []byte) string {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, try treating the whole thing as plain text
		return collapseSnippet(string(raw))
	}
	defer mr.Close()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return collapseSnippet(string(body))
		case strings.HasPrefix(contentType, "text/html"):
			if htmlBody == "" {
				htmlBody = string(body)
			}
		}
	}

	return collapseSnippet(stripHTML(htmlBody))
}

// collapseSnippet squeezes whitespace runs to single spaces and trims
// the result to snippetLimit runes.
func collapseSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > snippetLimit {
		s = string(runes[:snippetLimit])
	}
	return s
}
