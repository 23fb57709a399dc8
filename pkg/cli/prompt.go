package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads secrets from the controlling terminal. Prompts are written to stderr so that
// stdout only carries command output.
type Prompter struct {
	// Input is read without echo. Defaults to os.Stdin.
	Input *os.File
	// Output receives the prompt text. Defaults to os.Stderr.
	Output io.Writer
}

// ErrNoTerminal indicates a secret was requested but stdin is not a terminal.
var ErrNoTerminal = errors.New("no terminal available for password prompt")

func (p *Prompter) input() *os.File {
	if p.Input == nil {
		return os.Stdin
	}
	return p.Input
}

func (p *Prompter) output() io.Writer {
	if p.Output == nil {
		return os.Stderr
	}
	return p.Output
}

// ReadSecret displays prompt and reads a line without echo. It returns early with ctx.Err() if ctx
// is cancelled; the terminal read is then abandoned.
func (p *Prompter) ReadSecret(ctx context.Context, prompt string) (string, error) {
	fd := int(p.input().Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	w := p.output()
	fmt.Fprintf(w, "%s: ", prompt)

	type result struct {
		secret []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		b, err := term.ReadPassword(fd)
		done <- result{b, err}
	}()
	select {
	case r := <-done:
		fmt.Fprintln(w)
		if r.err != nil {
			return "", r.err
		}
		return string(r.secret), nil
	case <-ctx.Done():
		fmt.Fprintln(w)
		return "", ctx.Err()
	}
}

// PromptPIN asks for the PIN the password manager displays during authentication.
func (p *Prompter) PromptPIN(ctx context.Context) (string, error) {
	pin, err := p.ReadSecret(ctx, "Enter PIN")
	if err != nil {
		return "", err
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return "", fmt.Errorf("empty PIN")
	}
	return pin, nil
}

// PromptNewPassword asks for a password twice and returns it if both entries match.
func (p *Prompter) PromptNewPassword(ctx context.Context) (string, error) {
	password, err := p.ReadSecret(ctx, "Password")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	confirmation, err := p.ReadSecret(ctx, "Confirm password")
	if err != nil {
		return "", err
	}
	if password != confirmation {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func (c *Config) getPassword(prompt string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}
	var p Prompter
	password, err := p.ReadSecret(context.Background(), prompt)
	if err != nil {
		return "", err
	}
	c.password = &password
	return password, nil
}
