// Package credentials supplies the portal login secrets at run time.
// Secrets are never written anywhere; they live only as long as the caller holds them.
package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmpty is returned when a secret is blank.
var ErrEmpty = errors.New("empty credential")

// Provider supplies the password and the secondary-challenge answer.
type Provider interface {
	Password(ctx context.Context) (string, error)
	SecretAnswer(ctx context.Context) (string, error)
}

// Prompt asks the operator for secrets on a terminal without echoing them.
// When in is not a terminal it falls back to reading one line per secret.
type Prompt struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewPrompt creates a Prompt reading from in and writing labels to out.
func NewPrompt(in *os.File, out io.Writer) *Prompt {
	return &Prompt{in: in, out: out, reader: bufio.NewReader(in)}
}

// Password prompts for the account password.
func (p *Prompt) Password(ctx context.Context) (string, error) {
	return p.read(ctx, "Password: ")
}

// SecretAnswer prompts for the answer to the security question.
func (p *Prompt) SecretAnswer(ctx context.Context) (string, error) {
	return p.read(ctx, "Secret answer: ")
}

func (p *Prompt) read(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(p.out, label)

	var value string
	if fd := int(p.in.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), err)
		}
		value = string(b)
	} else {
		line, err := p.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), err)
		}
		value = strings.TrimRight(line, "\r\n")
	}

	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, strings.TrimSuffix(label, ": "))
	}
	return value, nil
}

// Static returns fixed secrets.
type Static struct {
	PasswordValue string
	Answer        string
}

// Password returns the configured password.
func (s Static) Password(context.Context) (string, error) {
	if s.PasswordValue == "" {
		return "", fmt.Errorf("%w: password", ErrEmpty)
	}
	return s.PasswordValue, nil
}

// SecretAnswer returns the configured answer.
func (s Static) SecretAnswer(context.Context) (string, error) {
	if s.Answer == "" {
		return "", fmt.Errorf("%w: secret answer", ErrEmpty)
	}
	return s.Answer, nil
}
