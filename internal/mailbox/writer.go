package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

// Writer delivers composed replies over SMTP and optionally appends a copy
// of each sent reply to an IMAP folder.
type Writer struct {
	smtpCfg model.SMTPConfig
	reader  *Reader
	timeout time.Duration
}

// NewWriter creates a writer. The reader is reused for sent-copy appends
// so both sides of the account share one set of IMAP credentials.
func NewWriter(smtpCfg model.SMTPConfig, reader *Reader, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Writer{smtpCfg: smtpCfg, reader: reader, timeout: timeout}
}

// Send delivers the draft to the SMTP server, blocking for at most the
// configured timeout. A timeout is reported as an ambiguous SendError: the
// delivery attempt keeps running in the background and may still succeed,
// so the caller must not assume the reply was lost.
func (w *Writer) Send(ctx context.Context, draft *model.ReplyDraft) error {
	done := make(chan error, 1)

	go func() {
		done <- w.deliver(draft)
	}()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &SendError{
			Stage:     "timeout",
			Ambiguous: true,
			Err:       fmt.Errorf("no server response within %s", w.timeout),
		}
	case <-ctx.Done():
		return &SendError{
			Stage:     "canceled",
			Ambiguous: true,
			Err:       ctx.Err(),
		}
	}
}

// deliver performs the actual SMTP transaction. Failures before the final
// DATA dot are clean failures: the server has not queued anything.
// Failures after it are ambiguous unless the server answered with an
// explicit SMTP error.
func (w *Writer) deliver(draft *model.ReplyDraft) error {
	addr := w.smtpCfg.Address()

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: w.smtpCfg.Host,
	}

	var c *smtp.Client
	var err error
	if w.smtpCfg.StartTLS {
		c, err = smtp.DialStartTLS(addr, tlsConfig)
	} else {
		c, err = smtp.DialTLS(addr, tlsConfig)
	}
	if err != nil {
		return &SendError{Stage: "dial", Err: err}
	}
	defer c.Close()

	if w.smtpCfg.Username != "" {
		auth := sasl.NewPlainClient("", w.smtpCfg.Username, w.smtpCfg.Password)
		if err := c.Auth(auth); err != nil {
			return &SendError{Stage: "auth", Err: err}
		}
	}

	if err := c.Mail(draft.From, nil); err != nil {
		return &SendError{Stage: "mail", Err: err}
	}
	if err := c.Rcpt(draft.To, nil); err != nil {
		return &SendError{Stage: "rcpt", Err: err}
	}

	wc, err := c.Data()
	if err != nil {
		return &SendError{Stage: "data", Err: err}
	}
	if _, err := wc.Write(draft.Raw); err != nil {
		// Close anyway so the connection does not wedge; without the final
		// dot the server discards the partial message.
		_ = wc.Close()
		return &SendError{Stage: "write", Err: err}
	}
	if err := wc.Close(); err != nil {
		// The full body went out. An SMTP status means the server decided
		// and rejected; anything else means the answer was lost in flight.
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return &SendError{Stage: "close", Err: err}
		}
		return &SendError{Stage: "close", Ambiguous: true, Err: err}
	}

	// Delivery is confirmed at this point. A failed QUIT changes nothing.
	_ = c.Quit()

	return nil
}

// AppendSent appends the sent reply to the given IMAP folder with the
// \Seen flag, mirroring what the mailbox owner would see had they sent it
// by hand. Failures here are non-fatal: the reply is already delivered.
func (w *Writer) AppendSent(
	ctx context.Context, folder string, draft *model.ReplyDraft,
) error {
	client, err := w.reader.connect(ctx)
	if err != nil {
		return fmt.Errorf("appending sent copy: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	appendCmd := client.Append(folder, int64(len(draft.Raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := appendCmd.Write(draft.Raw); err != nil {
		_ = appendCmd.Close()
		return fmt.Errorf("writing sent copy to %s: %w", folder, err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("closing sent copy append: %w", err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending sent copy to %s: %w", folder, err)
	}

	return nil
}
