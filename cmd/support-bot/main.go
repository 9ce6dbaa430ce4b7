// Command support-bot polls IMAP folders for new support inquiries and
// replies to them with AI-generated answers grounded in per-folder
// documentation.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skorokithakis/support-email-bot/internal/ai"
	"github.com/skorokithakis/support-email-bot/internal/compose"
	"github.com/skorokithakis/support-email-bot/internal/credential"
	"github.com/skorokithakis/support-email-bot/internal/mailbox"
	"github.com/skorokithakis/support-email-bot/internal/metrics"
	"github.com/skorokithakis/support-email-bot/internal/model"
	"github.com/skorokithakis/support-email-bot/internal/poll"
	"github.com/skorokithakis/support-email-bot/internal/prompt"
	"github.com/skorokithakis/support-email-bot/internal/store"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to configuration file")
	setCredential := flag.String("set-credential", "",
		"store a secret in the system keyring under the given key "+
			"(imap_password, smtp_password or ai_api_key) and exit")
	flag.Parse()

	if *setCredential != "" {
		if err := credential.PromptAndSet(*setCredential); err != nil {
			slog.Error("storing credential failed", "key", *setCredential, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Credential %s stored.\n", *setCredential)
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Secrets omitted from the config file resolve from the keyring.
	credential.Fill(&cfg.IMAP.Password, credential.KeyIMAPPassword)
	credential.Fill(&cfg.SMTP.Password, credential.KeySMTPPassword)
	credential.Fill(&cfg.AI.APIKey, credential.KeyAIAPIKey)

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.NewSQLiteStore(cfg.ResolvePath(cfg.StateDB))
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer s.Close()

	completer := ai.New(cfg.AI)
	if err := completer.Verify(ctx); err != nil {
		return fmt.Errorf("verifying completion service: %w", err)
	}

	reader := mailbox.NewReader(cfg.IMAP)
	writer := mailbox.NewWriter(cfg.SMTP, reader, cfg.Send.Timeout())
	prompts := prompt.NewBuilder(cfg.CompanyName, cfg.SupportEmail, logger)
	composer := compose.NewComposer(cfg.From())

	folderNames := make([]string, 0, len(cfg.Folders))
	repliedTotal := 0
	for _, f := range cfg.Folders {
		folderNames = append(folderNames, f.Name)
		n, err := s.ProcessedCount(ctx, f.Name)
		if err != nil {
			logger.Warn("could not read processed count", "folder", f.Name, "error", err)
			continue
		}
		repliedTotal += n
	}

	logger.Info("starting support email monitor",
		"imap_server", cfg.IMAP.Host,
		"account", cfg.IMAP.Username,
		"folders", strings.Join(folderNames, ", "),
		"model", completer.Model(),
		"company", cfg.CompanyName,
		"replied_total", repliedTotal,
	)

	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.ListenAddr); err != nil {
				logger.Error("metrics listener failed", "addr", cfg.Metrics.ListenAddr, "error", err)
			}
		}()
	}

	opener := poll.OpenerFunc(func(ctx context.Context, folder string) (poll.Session, error) {
		return reader.Open(ctx, folder)
	})

	poller := poll.New(cfg, s, opener, prompts, completer, composer, writer, logger)
	if cfg.Send.ConfirmBeforeSend {
		poller.SetConfirm(confirmOnStdin)
	}

	poller.Run(ctx)

	logger.Info("shutdown complete")
	return nil
}

// setupLogger configures slog with the console or JSON handler.
func setupLogger(cfg model.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// confirmOnStdin prints the proposed reply and asks the operator for a
// y/n decision before sending.
func confirmOnStdin(draft *model.ReplyDraft) bool {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("PROPOSED EMAIL RESPONSE:")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("To: %s\nFrom: %s\nSubject: %s\n", draft.To, draft.From, draft.Subject)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println(draft.Body)
	fmt.Println(strings.Repeat("=", 60))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nSend this email? (y/n): ")
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y":
			return true
		case "n":
			fmt.Println("Email cancelled.")
			return false
		default:
			fmt.Println("Please enter 'y' or 'n'.")
		}
	}
}
