package compose

import (
	"bytes"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

func original(id string, refs []string) *model.InboundMessage {
	return &model.InboundMessage{
		MessageSummary: model.MessageSummary{
			ID:      id,
			From:    "customer@example.com",
			Subject: "Refund status?",
		},
		TextBody:   "Where is my refund?",
		References: refs,
	}
}

func TestComposeFirstReplyInThread(t *testing.T) {
	c := NewComposer("support@company.com")

	draft, err := c.Compose(original("m1@example.com", nil), "Your refund is on its way.")
	require.NoError(t, err)

	assert.Equal(t, "customer@example.com", draft.To)
	assert.Equal(t, "Re: Refund status?", draft.Subject)
	assert.Equal(t, "m1@example.com", draft.InReplyTo)
	assert.Equal(t, []string{"m1@example.com"}, draft.References)
	assert.NotEmpty(t, draft.MessageID)
	assert.NotEqual(t, "m1@example.com", draft.MessageID)
}

func TestComposeExtendsReferenceChain(t *testing.T) {
	c := NewComposer("support@company.com")
	orig := original("c@example.com", []string{"a@example.com", "b@example.com"})

	draft, err := c.Compose(orig, "Answer.")
	require.NoError(t, err)

	// A thread with chain [a, b] and id c yields [a, b, c].
	assert.Equal(t,
		[]string{"a@example.com", "b@example.com", "c@example.com"},
		draft.References)
	assert.Equal(t, "c@example.com", draft.InReplyTo)
}

func TestComposeDoesNotMutateOriginalReferences(t *testing.T) {
	c := NewComposer("support@company.com")
	refs := []string{"a@example.com"}
	orig := original("b@example.com", refs)

	_, err := c.Compose(orig, "Answer.")
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com"}, orig.References)
}

func TestComposeEmptyCompletionFails(t *testing.T) {
	c := NewComposer("support@company.com")

	for _, text := range []string{"", "   \n\t"} {
		_, err := c.Compose(original("m1@example.com", nil), text)
		require.Error(t, err)
		assert.True(t, IsCompositionError(err))
	}
}

func TestComposeMissingSenderFails(t *testing.T) {
	c := NewComposer("support@company.com")
	orig := original("m1@example.com", nil)
	orig.From = ""

	_, err := c.Compose(orig, "Answer.")
	require.Error(t, err)
	assert.True(t, IsCompositionError(err))
}

func TestRenderedMessageRoundTrips(t *testing.T) {
	c := NewComposer("support@company.com")
	orig := original("c@example.com", []string{"a@example.com", "b@example.com"})

	draft, err := c.Compose(orig, "Here is your answer.")
	require.NoError(t, err)
	require.NotEmpty(t, draft.Raw)

	mr, err := mail.CreateReader(bytes.NewReader(draft.Raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Refund status?", subject)

	msgID, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.Equal(t, draft.MessageID, msgID)

	inReplyTo, err := mr.Header.MsgIDList("In-Reply-To")
	require.NoError(t, err)
	assert.Equal(t, []string{"c@example.com"}, inReplyTo)

	refs, err := mr.Header.MsgIDList("References")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, refs)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "customer@example.com", to[0].Address)
}

func TestReplySubject(t *testing.T) {
	cases := map[string]string{
		"Refund status?":     "Re: Refund status?",
		"Re: Refund status?": "Re: Refund status?",
		"RE: shouting":       "RE: shouting",
		"re: lowercase":      "re: lowercase",
		"  padded  ":         "Re: padded",
		"":                   "Re: ",
	}

	for in, want := range cases {
		assert.Equal(t, want, ReplySubject(in), "subject %q", in)
	}
}

func TestMessageIDUsesSenderDomain(t *testing.T) {
	c := NewComposer("support@company.com")

	draft, err := c.Compose(original("m1@example.com", nil), "Answer.")
	require.NoError(t, err)
	assert.Contains(t, draft.MessageID, "@company.com")
}
