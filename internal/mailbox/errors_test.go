package mailbox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	connErr := fmt.Errorf("cycle: %w", &ConnError{Op: "dial", Err: fmt.Errorf("refused")})
	assert.True(t, IsConnError(connErr))
	assert.False(t, IsConnError(fmt.Errorf("plain error")))

	ambiguous := fmt.Errorf("send: %w", &SendError{Stage: "timeout", Ambiguous: true, Err: fmt.Errorf("lost")})
	assert.True(t, IsAmbiguousSend(ambiguous))

	definite := &SendError{Stage: "rcpt", Err: fmt.Errorf("no such user")}
	assert.False(t, IsAmbiguousSend(definite))
	assert.False(t, IsAmbiguousSend(fmt.Errorf("plain error")))
}

func TestSendErrorMessages(t *testing.T) {
	ambiguous := &SendError{Stage: "close", Ambiguous: true, Err: fmt.Errorf("connection reset")}
	assert.Contains(t, ambiguous.Error(), "ambiguous")

	definite := &SendError{Stage: "mail", Err: fmt.Errorf("rejected")}
	assert.NotContains(t, definite.Error(), "ambiguous")
}
