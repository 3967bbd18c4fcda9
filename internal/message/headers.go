// Package message holds the protocol-agnostic HTTP message model: header
// containers, requests, responses, trailers and body envelopes shared by
// both the HTTP/1 and HTTP/2 paths.
package message

import (
	"fmt"
	"strings"
)

// ErrLocked is returned by any mutator called on a locked Headers or Message.
var ErrLocked = fmt.Errorf("message: locked for mutation")

// Headers is an ordered multi-map of lowercase field names to value lists.
// Every key present in the map has a non-empty value slice; the zero value
// is ready to use.
type Headers struct {
	names  []string
	values map[string][]string
	locked bool
}

// NewHeaders returns an empty, unlocked header container.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

func (h *Headers) checkLocked() error {
	if h.locked {
		return ErrLocked
	}
	return nil
}

// Lock freezes the container; every subsequent mutator returns ErrLocked.
// Lock is a one-way transition and idempotent.
func (h *Headers) Lock() { h.locked = true }

// Locked reports whether Lock has been called.
func (h *Headers) Locked() bool { return h.locked }

func normalize(name string) string { return strings.ToLower(name) }

func (h *Headers) ensure(name string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
}

// Get returns the first value for name, or "" with ok=false if absent.
func (h *Headers) Get(name string) (string, bool) {
	vs, ok := h.values[normalize(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetIndex returns the value at position idx for name; negative idx counts
// from the end, matching the header-container contract (§3, §4.B-C).
func (h *Headers) GetIndex(name string, idx int) (string, bool) {
	vs, ok := h.values[normalize(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	if idx < 0 {
		idx = len(vs) + idx
	}
	if idx < 0 || idx >= len(vs) {
		return "", false
	}
	return vs[idx], true
}

// Count returns how many values are stored under name.
func (h *Headers) Count(name string) int {
	return len(h.values[normalize(name)])
}

// Set replaces all values for name with a single value.
func (h *Headers) Set(name, value string) error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	name = normalize(name)
	h.ensure(name)
	h.values[name] = []string{value}
	return nil
}

// Add appends value to name's value list, creating it if absent.
func (h *Headers) Add(name, value string) error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	name = normalize(name)
	h.ensure(name)
	h.values[name] = append(h.values[name], value)
	return nil
}

// AddAt inserts value into name's value list at position index (negative
// counts from the end, so -1 inserts before the last element), shifting
// later values up by one, creating the value list if name is absent.
// Matches HTTPHeaderContainer.addHeader(key, value, index)'s positional
// insert.
func (h *Headers) AddAt(name, value string, index int) error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	name = normalize(name)
	h.ensure(name)
	vs := h.values[name]
	if index < 0 {
		index = len(vs) + 1 + index
	}
	if index < 0 || index > len(vs) {
		return fmt.Errorf("message: header %q index out of range", name)
	}
	vs = append(vs, "")
	copy(vs[index+1:], vs[index:])
	vs[index] = value
	h.values[name] = vs
	return nil
}

// Edit replaces the value at position idx (negative counts from the end).
func (h *Headers) Edit(name string, idx int, value string) error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	name = normalize(name)
	vs, ok := h.values[name]
	if !ok {
		return fmt.Errorf("message: header %q not present", name)
	}
	if idx < 0 {
		idx = len(vs) + idx
	}
	if idx < 0 || idx >= len(vs) {
		return fmt.Errorf("message: header %q index out of range", name)
	}
	vs[idx] = value
	return nil
}

// Append concatenates value onto the existing value for name using sep
// (default ", " when sep is empty), or behaves like Add if name is absent.
func (h *Headers) Append(name, value, sep string) error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	if sep == "" {
		sep = ", "
	}
	name = normalize(name)
	vs, ok := h.values[name]
	if !ok || len(vs) == 0 {
		return h.Add(name, value)
	}
	vs[len(vs)-1] = vs[len(vs)-1] + sep + value
	return nil
}

// Extract removes all values for name and returns the first one removed.
func (h *Headers) Extract(name string) (string, bool, error) {
	if err := h.checkLocked(); err != nil {
		return "", false, err
	}
	name = normalize(name)
	vs, ok := h.values[name]
	if !ok || len(vs) == 0 {
		return "", false, nil
	}
	delete(h.values, name)
	h.removeName(name)
	return vs[0], true, nil
}

// Delete removes name entirely.
func (h *Headers) Delete(name string) error {
	if err := h.checkLocked(); err != nil {
		return err
	}
	name = normalize(name)
	if _, ok := h.values[name]; !ok {
		return nil
	}
	delete(h.values, name)
	h.removeName(name)
	return nil
}

func (h *Headers) removeName(name string) {
	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			return
		}
	}
}

// Names enumerates the distinct header names in first-insertion order.
func (h *Headers) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Pair is a flattened (name, value) entry produced by All.
type Pair struct{ Name, Value string }

// All flattens the container into a fresh (name, value) sequence. Key order
// is not part of the contract; callers must not rely on it across calls.
func (h *Headers) All() []Pair {
	out := make([]Pair, 0, len(h.names))
	for _, n := range h.names {
		for _, v := range h.values[n] {
			out = append(out, Pair{n, v})
		}
	}
	return out
}

// Clone returns a deep, unlocked copy.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	for _, n := range h.names {
		vs := h.values[n]
		cp := make([]string, len(vs))
		copy(cp, vs)
		c.values[n] = cp
		c.names = append(c.names, n)
	}
	return c
}
