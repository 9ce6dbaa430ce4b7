package model

import "time"

// MessageSummary is the lightweight listing view of a mailbox message,
// enough to decide whether it still needs a reply without fetching the
// full body.
type MessageSummary struct {
	// ID is the stable identity of the message: its RFC 5322 Message-ID
	// when present, otherwise a "uid:<uidvalidity>:<uid>" fallback.
	ID string

	// UID is the IMAP UID within the currently selected folder.
	UID uint32

	Subject string
	From    string
	Date    time.Time
}

// InboundMessage is a fully fetched email. It is never mutated after the
// fetch, only read.
type InboundMessage struct {
	MessageSummary

	// TextBody is the plain-text body, or a text rendering of the HTML
	// body when no plain part exists.
	TextBody string

	// HTMLBody is the raw text/html body, if any.
	HTMLBody string

	// References is the parent reference chain from the References header,
	// oldest first, without angle brackets.
	References []string
}

// ReplyDraft is a composed outgoing reply. It is consumed immediately by
// the mailbox writer and never persisted.
type ReplyDraft struct {
	// MessageID is the newly generated id of the draft itself, without
	// angle brackets.
	MessageID string

	From    string
	To      string
	Subject string
	Body    string

	// InReplyTo is the original message's id.
	InReplyTo string

	// References is the original's chain followed by the original's id, so
	// the Nth reply in a thread carries a chain of length N.
	References []string

	// Raw is the rendered RFC 5322 message as sent on the wire.
	Raw []byte
}
