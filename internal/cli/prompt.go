package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/seal"
)

// ensurePassphrase prompts for the seal passphrase when the provider needs
// one and the environment did not supply it.
func (c *cli) ensurePassphrase(cfg *config.Config) error {
	if seal.ProviderType(cfg.Seal.Provider) != seal.ProviderPassphrase || cfg.Seal.Passphrase != "" {
		return nil
	}
	pass, err := c.readSecret("Wallet passphrase: ")
	if err != nil {
		return err
	}
	cfg.Seal.Passphrase = pass
	return nil
}

// readSecret reads one line without echo when stdin is a terminal, and a
// plain line otherwise (pipes, tests).
func (c *cli) readSecret(prompt string) (string, error) {
	if f, ok := c.opts.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.opts.Err, prompt)
		defer fmt.Fprintln(c.opts.Err)

		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		defer clear(raw)
		return nonEmpty(string(raw))
	}

	if c.reader == nil {
		c.reader = bufio.NewReader(c.opts.In)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return nonEmpty(line)
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("input cannot be empty")
	}
	return s, nil
}
