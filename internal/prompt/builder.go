// Package prompt assembles completion prompts from folder documentation,
// folder prompt templates, and inbound messages.
package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/k3a/html2text"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

// instructions is the fixed tail of every prompt. It constrains tone and
// keeps the model from inventing facts the documentation does not support.
const instructions = `Please write a helpful and professional response to this customer email. Make sure to:

1. Address their specific questions or concerns.
2. Provide clear and actionable information based on the documentation.
3. Maintain a friendly and professional tone, but don't be condescending or saccharine.
4. Include any relevant links or resources.
5. Take the conversation history into account.
6. Do not use em- or en-dashes. Use normal dashes.
7. Don't sign emails.
8. DO NOT assume things, and DO NOT say you have checked things you haven't. If you don't have access to check something, just don't assume or say anything about it. You MUST NEVER make implicit assumptions that might be wrong.`

// Builder merges folder documentation, the folder's prompt template, and
// an inbound message into a completion prompt. Given identical inputs the
// output is identical; there is no hidden state.
type Builder struct {
	companyName  string
	supportEmail string
	logger       *slog.Logger
}

// NewBuilder creates a prompt builder. companyName and supportEmail fill
// the corresponding template placeholders.
func NewBuilder(companyName, supportEmail string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		companyName:  companyName,
		supportEmail: supportEmail,
		logger:       logger,
	}
}

// Build assembles the prompt for one inbound message. docsPath is the
// already-resolved documentation file path; a missing or unreadable file
// degrades to an empty documentation section rather than failing the
// message, but the degradation is logged because it silently lowers
// answer quality.
func (b *Builder) Build(
	folder model.FolderConfig, docsPath string, msg *model.InboundMessage,
) string {
	docs := b.loadDocumentation(folder.Name, docsPath)

	tmpl := strings.ReplaceAll(folder.Prompt, "{company_name}", b.companyName)
	tmpl = strings.ReplaceAll(tmpl, "{support_email}", b.supportEmail)

	var sb strings.Builder

	if strings.Contains(tmpl, "{docs}") {
		sb.WriteString(strings.ReplaceAll(tmpl, "{docs}", docs))
		sb.WriteString("\n")
	} else {
		sb.WriteString(tmpl)
		sb.WriteString("\n\nDocumentation:\n")
		sb.WriteString(docs)
		sb.WriteString("\n")
	}

	body := msg.TextBody
	if body == "" && msg.HTMLBody != "" {
		body = html2text.HTML2Text(msg.HTMLBody)
	}

	fmt.Fprintf(&sb, "\nCustomer Email:\nFrom: %s\nSubject: %s\nMessage:\n```\n%s\n```\n\n",
		msg.From, msg.Subject, body)
	sb.WriteString(instructions)

	return sb.String()
}

// loadDocumentation reads the folder's documentation file, falling back to
// empty text when the file is missing or unreadable.
func (b *Builder) loadDocumentation(folder, path string) string {
	if path == "" {
		b.logger.Warn("no documentation file configured, replying without grounding",
			"folder", folder)
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		b.logger.Warn("documentation unavailable, replying without grounding",
			"folder", folder, "path", path, "error", err)
		return ""
	}

	return string(data)
}
