// File: internal/domain/id.go
package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when an identifier cannot be parsed.
var ErrInvalidID = errors.New("invalid id")

// ID is a scoped identifier: unique within one server's namespace and made of
// the server component plus a local value. A zero Local is the NULL id.
type ID struct {
	Server uint32
	Local  uint64
}

// NullID is the canonical "no entity" value.
var NullID = ID{}

// MaxLocal is the largest local value storage can hold in a signed 64-bit column.
const MaxLocal uint64 = math.MaxInt64

func NewID(server uint32, local uint64) ID {
	return ID{Server: server, Local: local}
}

// IsNull reports whether the id references nothing, whatever its server scope.
func (id ID) IsNull() bool {
	return id.Local == 0
}

// Equal compares two ids, treating every NULL id as equal to every other.
func (id ID) Equal(other ID) bool {
	if id.IsNull() || other.IsNull() {
		return id.IsNull() && other.IsNull()
	}
	return id == other
}

func (id ID) String() string {
	if id.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d.%d", id.Server, id.Local)
}

// ParseID accepts "<server>.<local>", a bare "<local>" (scoped to server) or "null".
func ParseID(server uint32, s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return NullID, nil
	}

	serverPart, localPart, scoped := strings.Cut(s, ".")
	if !scoped {
		local, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return NullID, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}
		return NewID(server, local), nil
	}

	srv, err := strconv.ParseUint(serverPart, 10, 32)
	if err != nil {
		return NullID, fmt.Errorf("%w: server part of %q", ErrInvalidID, s)
	}
	local, err := strconv.ParseUint(localPart, 10, 64)
	if err != nil {
		return NullID, fmt.Errorf("%w: local part of %q", ErrInvalidID, s)
	}
	return NewID(uint32(srv), local), nil
}

// MarshalText renders the id the way String does so ids read the same in JSON and logs.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the MarshalText form. Bare local values land in server 0.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(0, string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
