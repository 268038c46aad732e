package credentials

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func pipeWith(t *testing.T, input string) *os.File {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })

	if _, err := w.WriteString(input); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return r
}

func TestPrompt_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(pipeWith(t, "hunter2\r\nblue\n"), &out)

	pass, err := p.Password(context.Background())
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	answer, err := p.SecretAnswer(context.Background())
	if err != nil {
		t.Fatalf("SecretAnswer: %v", err)
	}

	if pass != "hunter2" {
		t.Errorf("password: got %q", pass)
	}
	if answer != "blue" {
		t.Errorf("answer: got %q", answer)
	}
	if !strings.Contains(out.String(), "Password: ") || !strings.Contains(out.String(), "Secret answer: ") {
		t.Errorf("missing prompt labels in %q", out.String())
	}
	if strings.Contains(out.String(), "hunter2") {
		t.Error("secret echoed to output")
	}
}

func TestPrompt_LastLineWithoutNewline(t *testing.T) {
	p := NewPrompt(pipeWith(t, "pw\nanswer"), &bytes.Buffer{})

	if _, err := p.Password(context.Background()); err != nil {
		t.Fatal(err)
	}
	answer, err := p.SecretAnswer(context.Background())
	if err != nil {
		t.Fatalf("SecretAnswer: %v", err)
	}
	if answer != "answer" {
		t.Errorf("got %q", answer)
	}
}

func TestPrompt_Empty(t *testing.T) {
	p := NewPrompt(pipeWith(t, "\n"), &bytes.Buffer{})

	if _, err := p.Password(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestPrompt_EOF(t *testing.T) {
	p := NewPrompt(pipeWith(t, ""), &bytes.Buffer{})

	if _, err := p.Password(context.Background()); err == nil {
		t.Fatal("expected error on EOF")
	}
}

func TestPrompt_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPrompt(pipeWith(t, "pw\n"), &bytes.Buffer{})
	if _, err := p.Password(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	s := Static{PasswordValue: "pw", Answer: "a"}
	if got, _ := s.Password(context.Background()); got != "pw" {
		t.Errorf("password: %q", got)
	}
	if got, _ := s.SecretAnswer(context.Background()); got != "a" {
		t.Errorf("answer: %q", got)
	}
	if _, err := (Static{}).Password(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}
