package turnstile

import "fmt"

const redacted = "[REDACTED]"

// Secret holds a site secret key. Every printing or marshaling path renders
// it as [REDACTED]; Expose is the only way to read the value.
type Secret struct {
	value *string
}

// NewSecret wraps s. An empty s yields the zero Secret.
func NewSecret(s string) Secret {
	if s == "" {
		return Secret{}
	}
	return Secret{value: &s}
}

// Expose returns the raw secret value.
func (s Secret) Expose() string {
	if s.value == nil {
		return ""
	}
	return *s.value
}

// IsZero reports whether no secret is set.
func (s Secret) IsZero() bool { return s.value == nil }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return "turnstile.Secret(" + redacted + ")" }

// Format covers verbs that bypass String, such as %q and %x.
func (s Secret) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = fmt.Fprint(f, s.GoString())
		return
	}
	_, _ = fmt.Fprint(f, redacted)
}

func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }
