// Package enums holds the small closed sets shared by the ORM and admin layers:
// HTTP methods used by admin actions and ordered enumerations bound to columns.
package enums

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ErrUnknownMember is returned when a value does not belong to an enum
var ErrUnknownMember = errors.New("unknown enum member")

// Method is the HTTP method an admin action is submitted with
type Method string

const (
	GET    Method = "GET"
	POST   Method = "POST"
	DELETE Method = "DELETE"
	PUT    Method = "PUT"
	PATCH  Method = "PATCH"
)

// String returns the method name
func (m Method) String() string {
	return string(m)
}

// ParseMethod converts a method name (any case) into a Method
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case GET, POST, DELETE, PUT, PATCH:
		return m, nil
	default:
		return "", fmt.Errorf("unknown method: %s", s)
	}
}

// Member is one named value of an Enum
type Member struct {
	Name  string
	Value string
}

// Enum is an ordered set of members. Values are compared as strings so that
// an int column and a form field holding "1" resolve to the same member.
type Enum struct {
	Name    string
	Members []Member
}

// New builds an enum from alternating name/value pairs
func New(name string, pairs ...string) *Enum {
	e := &Enum{Name: name}
	for i := 0; i+1 < len(pairs); i += 2 {
		e.Members = append(e.Members, Member{Name: pairs[i], Value: pairs[i+1]})
	}
	return e
}

// Lookup resolves the member holding value v
func (e *Enum) Lookup(v any) (Member, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %v", ErrUnknownMember, v)
	}
	for _, m := range e.Members {
		if m.Value == s {
			return m, nil
		}
	}
	return Member{}, fmt.Errorf("%w: %s has no value %q", ErrUnknownMember, e.Name, s)
}

// ByName resolves the member called name
func (e *Enum) ByName(name string) (Member, error) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, nil
		}
	}
	return Member{}, fmt.Errorf("%w: %s has no member %q", ErrUnknownMember, e.Name, name)
}

// Choice is a (label, value) pair offered by selectors
type Choice struct {
	Label string
	Value string
}

// Choices returns the members as selector options, in declaration order
func (e *Enum) Choices() []Choice {
	out := make([]Choice, 0, len(e.Members))
	for _, m := range e.Members {
		out = append(out, Choice{Label: m.Name, Value: m.Value})
	}
	return out
}
