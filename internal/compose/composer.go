// Package compose builds outgoing reply messages with the threading
// headers mail clients rely on to group conversations.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

// CompositionError indicates that a reply could not be composed, most
// importantly because the completion text was empty. An empty reply must
// never reach the writer.
type CompositionError struct {
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composing reply: %v", e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// IsCompositionError reports whether err (or any error in its chain) is a
// CompositionError.
func IsCompositionError(err error) bool {
	var compErr *CompositionError
	return errors.As(err, &compErr)
}

// Composer builds reply drafts for a fixed sender address.
type Composer struct {
	from string
	now  func() time.Time
	id   func() string
}

// NewComposer creates a composer sending from the given address.
func NewComposer(from string) *Composer {
	return &Composer{
		from: from,
		now:  time.Now,
		id:   uuid.NewString,
	}
}

// Compose builds a reply draft for the original message. The draft
// answers the original sender, continues the subject line, and extends
// the reference chain by the original's own id so the Nth reply in a
// thread carries a chain of length N.
func (c *Composer) Compose(
	original *model.InboundMessage, completionText string,
) (*model.ReplyDraft, error) {
	body := strings.TrimSpace(completionText)
	if body == "" {
		return nil, &CompositionError{Err: fmt.Errorf("completion produced empty text")}
	}
	if original.From == "" {
		return nil, &CompositionError{Err: fmt.Errorf("original message has no sender address")}
	}

	refs := make([]string, 0, len(original.References)+1)
	refs = append(refs, original.References...)
	refs = append(refs, original.ID)

	draft := &model.ReplyDraft{
		MessageID:  c.newMessageID(),
		From:       c.from,
		To:         original.From,
		Subject:    ReplySubject(original.Subject),
		Body:       body,
		InReplyTo:  original.ID,
		References: refs,
	}

	raw, err := c.render(draft)
	if err != nil {
		return nil, &CompositionError{Err: err}
	}
	draft.Raw = raw

	return draft, nil
}

// ReplySubject applies the reply-marker convention: a subject that already
// starts with "Re:" (any case) is reused as-is, anything else gets the
// prefix. Mail clients use the same convention when grouping threads by
// subject.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// newMessageID generates a globally unique Message-ID, without angle
// brackets, scoped to the sender's domain.
func (c *Composer) newMessageID() string {
	domain := "localhost"
	if at := strings.LastIndex(c.from, "@"); at >= 0 && at < len(c.from)-1 {
		domain = c.from[at+1:]
	}
	return c.id() + "@" + domain
}

// render serializes the draft to RFC 5322 wire format.
func (c *Composer) render(draft *model.ReplyDraft) ([]byte, error) {
	var h mail.Header
	h.SetDate(c.now().UTC())
	h.SetSubject(draft.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: draft.From}})
	h.SetAddressList("To", []*mail.Address{{Address: draft.To}})
	h.SetMessageID(draft.MessageID)
	h.SetMsgIDList("In-Reply-To", []string{draft.InReplyTo})
	h.SetMsgIDList("References", draft.References)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, draft.Body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return buf.Bytes(), nil
}
