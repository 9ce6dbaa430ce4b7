package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

// Reader connects to the IMAP server and reads candidate messages from a
// monitored folder. Each poll cycle opens its own Session so that a
// connection failure is contained to that cycle.
type Reader struct {
	cfg model.IMAPConfig
}

// NewReader creates a reader for the given IMAP account.
func NewReader(cfg model.IMAPConfig) *Reader {
	return &Reader{cfg: cfg}
}

// Session is a single-folder IMAP session. It is not safe for concurrent
// use; each folder cycle owns exactly one.
type Session struct {
	client      *imapclient.Client
	folder      string
	uidValidity uint32
}

// connect dials the IMAP server and authenticates. All failures here are
// ConnErrors: nothing message-local can go wrong before a folder is open.
func (r *Reader) connect(_ context.Context) (*imapclient.Client, error) {
	addr := r.cfg.Host + ":" + r.cfg.Port

	var client *imapclient.Client
	var err error

	if r.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &ConnError{Op: "dial " + addr, Err: err}
	}

	if err := client.Login(r.cfg.Username, r.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &ConnError{Op: "login " + r.cfg.Username, Err: err}
	}

	return client, nil
}

// Open connects, authenticates, and selects the folder, returning a
// session scoped to one poll cycle. The caller must Close it.
func (r *Reader) Open(ctx context.Context, folder string) (*Session, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	selectData, err := client.Select(folder, nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, &ConnError{Op: "select " + folder, Err: err}
	}

	return &Session{
		client:      client,
		folder:      folder,
		uidValidity: selectData.UIDValidity,
	}, nil
}

// Close logs out and drops the connection.
func (s *Session) Close() error {
	return s.client.Logout().Wait()
}

// ListCandidates returns envelope summaries for every message in the
// folder, oldest first, without fetching bodies. The caller filters the
// result against the state store before fetching anything heavier.
func (s *Session) ListCandidates(_ context.Context) ([]model.MessageSummary, error) {
	searchData, err := s.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, &ConnError{Op: "search " + s.folder, Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)
	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var summaries []model.MessageSummary
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		summaries = append(summaries, s.summaryFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &ConnError{Op: "fetch envelopes " + s.folder, Err: err}
	}

	// UIDs are assigned in arrival order, so sorting by UID gives each
	// sender predictable reply ordering.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UID < summaries[j].UID
	})

	return summaries, nil
}

// FetchFull fetches the full message for a summary, parsing the MIME body
// and thread headers. A message that disappeared since listing yields a
// FetchError; the cycle skips it and moves on.
func (s *Session) FetchFull(
	_ context.Context, summary model.MessageSummary,
) (*model.InboundMessage, error) {
	uidSet := imap.UIDSetNum(imap.UID(summary.UID))

	// Peek so that listing the folder never mutates \Seen state.
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &FetchError{
			MessageID: summary.ID,
			Err:       fmt.Errorf("message UID %d not found in %s", summary.UID, s.folder),
		}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &FetchError{MessageID: summary.ID, Err: err}
	}

	inbound := &model.InboundMessage{
		MessageSummary: s.summaryFromBuffer(buf),
	}

	rawBody := buf.FindBodySection(bodySection)
	if rawBody != nil {
		textBody, htmlBody, refs := parseMessage(rawBody)
		inbound.TextBody = textBody
		inbound.HTMLBody = htmlBody
		inbound.References = refs
	}

	if err := fetchCmd.Close(); err != nil {
		return inbound, &FetchError{MessageID: summary.ID, Err: err}
	}

	return inbound, nil
}

// summaryFromBuffer extracts a MessageSummary from a fetch buffer,
// deriving the stable message identity.
func (s *Session) summaryFromBuffer(buf *imapclient.FetchMessageBuffer) model.MessageSummary {
	summary := model.MessageSummary{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		summary.Subject = buf.Envelope.Subject
		summary.Date = buf.Envelope.Date
		summary.ID = strings.Trim(buf.Envelope.MessageID, "<>")

		if len(buf.Envelope.From) > 0 {
			summary.From = buf.Envelope.From[0].Addr()
		}
	}

	// Not every message carries a Message-ID. Fall back to the only
	// stable identity IMAP itself offers.
	if summary.ID == "" {
		summary.ID = fmt.Sprintf("uid:%d:%d", s.uidValidity, summary.UID)
	}

	return summary
}

// parseMessage parses a raw RFC 5322 message using go-message, extracting
// the text and HTML bodies plus the References chain for threading.
func parseMessage(raw []byte) (textBody, htmlBody string, references []string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Unparseable MIME still deserves a reply attempt; treat the
		// whole payload as plain text.
		return string(raw), "", nil
	}
	defer mr.Close()

	if refs, err := mr.Header.MsgIDList("References"); err == nil {
		references = refs
	}

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
			if textBody == "" {
				textBody = string(body)
			}
		case strings.HasPrefix(contentType, "text/html"):
			if htmlBody == "" {
				htmlBody = string(body)
			}
		}
	}

	return textBody, htmlBody, references
}
