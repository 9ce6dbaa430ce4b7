// Package credential resolves secrets from the system keyring so that
// passwords and API keys can stay out of the config file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "support-email-bot"

// Well-known credential keys.
const (
	KeyIMAPPassword = "imap_password"
	KeySMTPPassword = "smtp_password"
	KeyAIAPIKey     = "ai_api_key"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/support-email-bot/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("support-email-bot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// PromptAndSet reads a secret from the terminal without echo and stores
// it under the given key. Only the well-known keys are accepted.
func PromptAndSet(key string) error {
	switch key {
	case KeyIMAPPassword, KeySMTPPassword, KeyAIAPIKey:
	default:
		return fmt.Errorf("unknown credential key %q (expected %s, %s or %s)",
			key, KeyIMAPPassword, KeySMTPPassword, KeyAIAPIKey)
	}

	value, err := keyring.TerminalPrompt(fmt.Sprintf("Value for %s", key))
	if err != nil {
		return fmt.Errorf("reading credential value: %w", err)
	}

	return Set(key, value)
}

// Fill resolves any empty secret through the keyring, leaving explicit
// config values untouched. Missing keyring entries are not an error;
// validation downstream decides whether a secret was required.
func Fill(value *string, key string) {
	if *value != "" {
		return
	}
	if v, err := Get(key); err == nil {
		*value = v
	}
}
