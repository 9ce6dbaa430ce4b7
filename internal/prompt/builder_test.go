package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

func inbound(subject, text, html string) *model.InboundMessage {
	return &model.InboundMessage{
		MessageSummary: model.MessageSummary{
			ID:      "m1@example.com",
			From:    "customer@example.com",
			Subject: subject,
		},
		TextBody: text,
		HTMLBody: html,
	}
}

func writeDocs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildIncludesDocumentation(t *testing.T) {
	b := NewBuilder("Acme", "support@acme.com", nil)
	docs := writeDocs(t, "Refunds processed in 5 days.")

	folder := model.FolderConfig{
		Name:   "billing",
		Prompt: "Answer using: {docs}",
	}
	got := b.Build(folder, docs, inbound("Refund status?", "Where is my refund?", ""))

	assert.Contains(t, got, "Refunds processed in 5 days.")
	assert.Contains(t, got, "Refund status?")
	assert.Contains(t, got, "Where is my refund?")
	assert.Contains(t, got, "customer@example.com")
}

func TestBuildAppendsDocsSectionWithoutPlaceholder(t *testing.T) {
	b := NewBuilder("Acme", "support@acme.com", nil)
	docs := writeDocs(t, "Plans start at $5/month.")

	folder := model.FolderConfig{
		Name:   "sales",
		Prompt: "You answer sales questions.",
	}
	got := b.Build(folder, docs, inbound("Pricing?", "How much?", ""))

	assert.Contains(t, got, "You answer sales questions.")
	assert.Contains(t, got, "Documentation:")
	assert.Contains(t, got, "Plans start at $5/month.")
}

func TestBuildMissingDocumentationFallsBack(t *testing.T) {
	b := NewBuilder("Acme", "support@acme.com", nil)

	folder := model.FolderConfig{
		Name:   "billing",
		Prompt: "Answer using: {docs}",
	}
	missing := filepath.Join(t.TempDir(), "nope.md")
	got := b.Build(folder, missing, inbound("Refund status?", "Hello?", ""))

	// Still a usable prompt, just without grounding.
	assert.Contains(t, got, "Answer using: ")
	assert.Contains(t, got, "Refund status?")
}

func TestBuildFillsPlaceholders(t *testing.T) {
	b := NewBuilder("Acme", "support@acme.com", nil)

	folder := model.FolderConfig{
		Name:   "support",
		Prompt: "You work for {company_name}, reachable at {support_email}.",
	}
	got := b.Build(folder, "", inbound("Hi", "Hi", ""))

	assert.Contains(t, got, "You work for Acme, reachable at support@acme.com.")
	assert.NotContains(t, got, "{company_name}")
	assert.NotContains(t, got, "{support_email}")
}

func TestBuildUsesHTMLBodyWhenNoTextPart(t *testing.T) {
	b := NewBuilder("Acme", "support@acme.com", nil)

	folder := model.FolderConfig{Name: "support", Prompt: "Answer."}
	got := b.Build(folder, "", inbound("Hi", "", "<p>My account is <b>locked</b>.</p>"))

	assert.Contains(t, got, "My account is locked.")
	assert.NotContains(t, got, "<p>")
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder("Acme", "support@acme.com", nil)
	docs := writeDocs(t, "Stable docs.")

	folder := model.FolderConfig{Name: "support", Prompt: "Answer using: {docs}"}
	msg := inbound("Hi", "Hello", "")

	first := b.Build(folder, docs, msg)
	second := b.Build(folder, docs, msg)
	assert.Equal(t, first, second)
}
