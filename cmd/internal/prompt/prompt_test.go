package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfirmerAnswers(t *testing.T) {
	var out bytes.Buffer
	c := NewScriptedConfirmer(strings.NewReader("y\nN\nyes\n"), &out)
	want := []bool{true, false, true}
	for i, expected := range want {
		got, err := c.Confirm("proceed?")
		if err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
		if got != expected {
			t.Fatalf("answer %d: expected %v got %v", i, expected, got)
		}
	}
	if strings.Count(out.String(), "proceed? [y/n]") != 3 {
		t.Fatalf("unexpected prompts %q", out.String())
	}
	if _, err := c.Confirm("again?"); err == nil {
		t.Fatalf("expected error once input is exhausted")
	}
}

func TestConfirmerAssumeYesAndNoTerminal(t *testing.T) {
	c := &Confirmer{AssumeYes: true}
	ok, err := c.Confirm("skip")
	if err != nil || !ok {
		t.Fatalf("assume yes should confirm without input: %v %v", ok, err)
	}
	c = &Confirmer{}
	if _, err := c.Confirm("needs tty"); !errors.Is(err, ErrNoTerminal) {
		t.Fatalf("expected ErrNoTerminal, got %v", err)
	}
}

func TestSecretFromEnv(t *testing.T) {
	t.Setenv("BONDCTL_TEST_SECRET", "s3cret")
	s := NewSecret("BONDCTL_TEST_SECRET", "secret")
	v, err := s.Get()
	if err != nil || v != "s3cret" {
		t.Fatalf("unexpected secret %q %v", v, err)
	}

	t.Setenv("BONDCTL_EMPTY_SECRET", " ")
	if _, err := NewSecret("BONDCTL_EMPTY_SECRET", "secret").Get(); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}
