// Package poll drives the mailbox polling loop: list candidates, skip the
// already-handled ones, build a grounded prompt, compose the reply, send
// it, and record the result.
package poll

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/skorokithakis/support-email-bot/internal/mailbox"
	"github.com/skorokithakis/support-email-bot/internal/metrics"
	"github.com/skorokithakis/support-email-bot/internal/model"
	"github.com/skorokithakis/support-email-bot/internal/store"
)

// Session reads one folder within one poll cycle.
type Session interface {
	ListCandidates(ctx context.Context) ([]model.MessageSummary, error)
	FetchFull(ctx context.Context, summary model.MessageSummary) (*model.InboundMessage, error)
	Close() error
}

// Opener opens a cycle-scoped mailbox session for a folder.
type Opener interface {
	Open(ctx context.Context, folder string) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, folder string) (Session, error)

func (f OpenerFunc) Open(ctx context.Context, folder string) (Session, error) {
	return f(ctx, folder)
}

// Completer turns a prompt into reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptBuilder assembles the completion prompt for an inbound message.
type PromptBuilder interface {
	Build(folder model.FolderConfig, docsPath string, msg *model.InboundMessage) string
}

// Composer builds a sendable draft from the original message and the
// completion text.
type Composer interface {
	Compose(original *model.InboundMessage, completionText string) (*model.ReplyDraft, error)
}

// Sender delivers drafts and appends sent copies.
type Sender interface {
	Send(ctx context.Context, draft *model.ReplyDraft) error
	AppendSent(ctx context.Context, folder string, draft *model.ReplyDraft) error
}

// ConfirmFunc is consulted before each send when confirm-before-send mode
// is on. Returning false skips the message without marking it processed.
type ConfirmFunc func(draft *model.ReplyDraft) bool

// State represents the current state of a folder's polling loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status holds the polling state for a single folder.
type Status struct {
	Folder    string
	State     State
	LastCycle time.Time
	Error     error
}

// Poller runs one independent polling loop per configured folder.
type Poller struct {
	cfg      *model.AppConfig
	store    store.Store
	opener   Opener
	prompts  PromptBuilder
	complete Completer
	compose  Composer
	sender   Sender
	confirm  ConfirmFunc
	logger   *slog.Logger

	mu       gosync.Mutex
	statuses map[string]*Status
}

// New creates a poller over the configured folders.
func New(
	cfg *model.AppConfig,
	s store.Store,
	opener Opener,
	prompts PromptBuilder,
	complete Completer,
	composer Composer,
	sender Sender,
	logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	statuses := make(map[string]*Status, len(cfg.Folders))
	for _, f := range cfg.Folders {
		statuses[f.Name] = &Status{Folder: f.Name, State: StateIdle}
	}

	return &Poller{
		cfg:      cfg,
		store:    s,
		opener:   opener,
		prompts:  prompts,
		complete: complete,
		compose:  composer,
		sender:   sender,
		logger:   logger,
		statuses: statuses,
	}
}

// SetConfirm installs a confirm-before-send hook.
func (p *Poller) SetConfirm(fn ConfirmFunc) {
	p.confirm = fn
}

// Run starts a polling goroutine per folder and blocks until ctx is
// canceled and every in-flight cycle has wound down.
func (p *Poller) Run(ctx context.Context) {
	var wg gosync.WaitGroup
	for _, folder := range p.cfg.Folders {
		wg.Add(1)
		go func(f model.FolderConfig) {
			defer wg.Done()
			p.pollFolder(ctx, f)
		}(folder)
	}
	wg.Wait()
}

// Statuses returns a snapshot of every folder's polling status.
func (p *Poller) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.statuses))
	for _, s := range p.statuses {
		out = append(out, *s)
	}
	return out
}

// pollFolder runs the polling loop for a single folder: an immediate
// first cycle, then one per interval tick until shutdown.
func (p *Poller) pollFolder(ctx context.Context, folder model.FolderConfig) {
	interval := folder.PollInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runCycle(ctx, folder)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx, folder)
		}
	}
}

// runCycle performs one full list-process-record pass over a folder. A
// connection-level failure aborts the cycle; the next tick retries from
// scratch. Per-message failures never do.
func (p *Poller) runCycle(ctx context.Context, folder model.FolderConfig) {
	p.setStatus(folder.Name, StateRunning, nil)

	session, err := p.opener.Open(ctx, folder.Name)
	if err != nil {
		p.cycleFailed(folder.Name, "open", err)
		return
	}
	defer session.Close()

	candidates, err := session.ListCandidates(ctx)
	if err != nil {
		p.cycleFailed(folder.Name, "list", err)
		return
	}

	replied := 0
	for _, candidate := range candidates {
		// A shutdown signal finishes nothing new: the in-flight candidate
		// (if any) already completed its send/record inside
		// processCandidate.
		if ctx.Err() != nil {
			p.setStatus(folder.Name, StateIdle, nil)
			return
		}

		handled, err := p.processCandidate(ctx, session, folder, candidate)
		if err != nil {
			if mailbox.IsConnError(err) {
				p.cycleFailed(folder.Name, "process", err)
				return
			}
			// Message-local failure: logged inside, cycle continues.
			continue
		}
		if handled {
			replied++
		}
	}

	if replied > 0 {
		p.logger.Info("poll cycle complete",
			"folder", folder.Name, "replies", replied, "candidates", len(candidates))
	} else {
		p.logger.Debug("poll cycle complete, nothing new",
			"folder", folder.Name, "candidates", len(candidates))
	}

	metrics.CyclesTotal.WithLabelValues(folder.Name, "success").Inc()
	p.setStatus(folder.Name, StateIdle, nil)
}

// processCandidate drives a single candidate through the per-message
// pipeline: dedup check, fetch, prompt, completion, composition, send,
// record. It returns (true, nil) when a reply went out and was recorded,
// (false, nil) when the message was skipped cleanly, and an error when a
// stage failed. Every stage failure leaves the message eligible for the
// next cycle, except a confirmed send whose record write failed, which
// raises a reconciliation alert instead.
func (p *Poller) processCandidate(
	ctx context.Context,
	session Session,
	folder model.FolderConfig,
	candidate model.MessageSummary,
) (bool, error) {
	log := p.logger.With("folder", folder.Name, "message_id", candidate.ID)

	done, err := p.store.HasProcessed(ctx, folder.Name, candidate.ID)
	if err != nil {
		// Without a trustworthy dedup answer, replying risks a duplicate.
		// Skip and let the next cycle retry the lookup.
		log.Error("dedup lookup failed, skipping message", "error", err)
		return false, err
	}
	if done {
		return false, nil
	}

	log.Info("new message detected",
		"from", candidate.From, "subject", candidate.Subject, "date", candidate.Date)

	original, err := session.FetchFull(ctx, candidate)
	if err != nil {
		if mailbox.IsConnError(err) {
			return false, err
		}
		log.Warn("fetch failed, skipping message", "stage", "fetch", "error", err)
		metrics.StageErrors.WithLabelValues(folder.Name, "fetch").Inc()
		return false, err
	}

	promptText := p.prompts.Build(folder, p.cfg.ResolvePath(folder.DocumentationFile), original)

	completion, err := p.complete.Complete(ctx, promptText)
	if err != nil {
		log.Warn("completion failed, will retry next cycle", "stage", "complete", "error", err)
		metrics.StageErrors.WithLabelValues(folder.Name, "complete").Inc()
		return false, err
	}

	draft, err := p.compose.Compose(original, completion)
	if err != nil {
		log.Warn("composition failed, skipping message", "stage", "compose", "error", err)
		metrics.StageErrors.WithLabelValues(folder.Name, "compose").Inc()
		return false, err
	}

	if p.confirm != nil && !p.confirm(draft) {
		log.Info("send declined by operator")
		return false, nil
	}

	// From here on a shutdown must not tear the send/record pair apart:
	// a reply that went out unrecorded is a duplicate waiting to happen.
	sendCtx := context.WithoutCancel(ctx)

	if err := p.sender.Send(sendCtx, draft); err != nil {
		if mailbox.IsAmbiguousSend(err) {
			metrics.AmbiguousSends.WithLabelValues(folder.Name).Inc()
			if p.cfg.Send.MarkAmbiguous {
				log.Warn("send outcome unknown, marking processed per policy (reply may be lost)",
					"error", err)
				p.record(sendCtx, folder.Name, candidate.ID, log)
				return false, nil
			}
			log.Warn("send outcome unknown, leaving unmarked per policy (duplicate possible)",
				"error", err)
		} else {
			log.Warn("send failed, will retry next cycle", "stage", "send", "error", err)
		}
		metrics.StageErrors.WithLabelValues(folder.Name, "send").Inc()
		return false, err
	}

	log.Info("reply sent", "to", draft.To, "subject", draft.Subject,
		"reply_message_id", draft.MessageID)
	metrics.RepliesSent.WithLabelValues(folder.Name).Inc()

	p.record(sendCtx, folder.Name, candidate.ID, log)

	if p.cfg.Send.AppendSentCopy {
		target := folder.SentCopyFolder
		if target == "" {
			target = folder.Name
		}
		if err := p.sender.AppendSent(sendCtx, target, draft); err != nil {
			// The reply is already delivered; a missing sent copy is an
			// inconvenience, not a fault.
			log.Warn("could not append sent copy", "target", target, "error", err)
		}
	}

	return true, nil
}

// record writes the processed record for a confirmed send. A failure here
// is the single most dangerous fault in the system: the reply exists but
// the evidence does not, so the next cycle may send a duplicate. It is
// logged loudly for operator reconciliation and never stops the loop.
func (p *Poller) record(ctx context.Context, folderName, messageID string, log *slog.Logger) {
	if err := p.store.MarkProcessed(ctx, folderName, messageID); err != nil {
		log.Error("RECONCILIATION ALERT: reply sent but processed record write failed; "+
			"duplicate reply possible until the store is corrected",
			"error", err)
		metrics.ReconciliationAlerts.WithLabelValues(folderName).Inc()
	}
}

// cycleFailed records a connection-level cycle failure.
func (p *Poller) cycleFailed(folderName, op string, err error) {
	p.logger.Error("folder cycle aborted, will retry next interval",
		"folder", folderName, "op", op, "error", err)
	metrics.CyclesTotal.WithLabelValues(folderName, "conn_error").Inc()
	p.setStatus(folderName, StateError, err)
}

// setStatus updates the polling status for a folder.
func (p *Poller) setStatus(folderName string, state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[folderName]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == StateIdle && err == nil {
		status.LastCycle = time.Now()
	}
}
