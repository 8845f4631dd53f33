package dcgerr

import (
	"errors"
	"testing"
)

func TestError_MessageIncludesContext(t *testing.T) {
	err := MissingFile("/etc/dcg/config.toml", nil)
	got := err.Error()
	want := "dcg[2001 configuration]: configuration file not found (/etc/dcg/config.toml)"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestError_MessageWithoutContext(t *testing.T) {
	err := MalformedStdin(nil)
	got := err.Error()
	want := "dcg[3001 runtime]: malformed hook input on stdin"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestError_UnwrapsWrappedError(t *testing.T) {
	inner := errors.New("boom")
	err := IOFailure("ledger.jsonl", inner)
	if !errors.Is(err, inner) {
		t.Fatalf("expected errors.Is to find the wrapped inner error")
	}
}

func TestError_CategoryDistinguishesConfigErrors(t *testing.T) {
	var target *Error

	cfgErr := ParseError("config.toml", errors.New("bad toml"))
	if !errors.As(cfgErr, &target) || target.Category != CategoryConfig {
		t.Fatalf("expected ParseError to carry CategoryConfig, got %+v", target)
	}

	runtimeErr := MalformedStdin(errors.New("bad json"))
	if !errors.As(runtimeErr, &target) || target.Category != CategoryRuntime {
		t.Fatalf("expected MalformedStdin to carry CategoryRuntime, got %+v", target)
	}
}

func TestConstructors_StableCodes(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		code int
	}{
		{"InvalidRegex", InvalidRegex("core.filesystem:rm-rf", nil), CodeInvalidRegex},
		{"MissingFile", MissingFile("x", nil), CodeMissingFile},
		{"MalformedStdin", MalformedStdin(nil), CodeMalformedStdin},
		{"ExternalPackRejected", ExternalPackRejected("myorg.bad", "invalid id"), CodeExternalPackRejected},
	}
	for _, c := range cases {
		if c.err.Code != c.code {
			t.Errorf("%s: Code = %d, want %d", c.name, c.err.Code, c.code)
		}
	}
}
