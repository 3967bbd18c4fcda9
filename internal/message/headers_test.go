package message

import "testing"

func TestHeaders_SetGet(t *testing.T) {
	h := NewHeaders()
	if err := h.Set("Content-Type", "text/plain"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok := h.Get("content-type")
	if !ok || v != "text/plain" {
		t.Errorf("Get() = %q, %v; want text/plain, true", v, ok)
	}
	if h.Count("content-type") != 1 {
		t.Errorf("Count() = %d; want 1", h.Count("content-type"))
	}
}

func TestHeaders_AddIndexing(t *testing.T) {
	h := NewHeaders()
	h.Add("x-a", "v1")
	h.Add("x-a", "v2")

	first, ok := h.GetIndex("x-a", 0)
	if !ok || first != "v1" {
		t.Errorf("GetIndex(0) = %q, %v; want v1, true", first, ok)
	}
	last, ok := h.GetIndex("x-a", -1)
	if !ok || last != "v2" {
		t.Errorf("GetIndex(-1) = %q, %v; want v2, true", last, ok)
	}
	if h.Count("x-a") != 2 {
		t.Errorf("Count() = %d; want 2", h.Count("x-a"))
	}
}

func TestHeaders_AddAt(t *testing.T) {
	h := NewHeaders()
	h.Add("x-a", "v1")
	h.Add("x-a", "v3")
	if err := h.AddAt("x-a", "v2", 1); err != nil {
		t.Fatalf("AddAt() error = %v", err)
	}
	for i, want := range []string{"v1", "v2", "v3"} {
		got, ok := h.GetIndex("x-a", i)
		if !ok || got != want {
			t.Errorf("GetIndex(%d) = %q, %v; want %q, true", i, got, ok, want)
		}
	}
	if err := h.AddAt("x-b", "first", 0); err != nil {
		t.Fatalf("AddAt() on absent header error = %v", err)
	}
	if v, ok := h.Get("x-b"); !ok || v != "first" {
		t.Errorf("Get(x-b) = %q, %v; want first, true", v, ok)
	}
	if err := h.AddAt("x-a", "oob", 99); err == nil {
		t.Errorf("AddAt() with out-of-range index expected error")
	}
}

func TestHeaders_Append(t *testing.T) {
	h := NewHeaders()
	h.Add("set-cookie", "a=1")
	if err := h.Append("set-cookie", "b=2", ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	v, _ := h.Get("set-cookie")
	if v != "a=1, b=2" {
		t.Errorf("Append() result = %q; want %q", v, "a=1, b=2")
	}
}

func TestHeaders_Extract(t *testing.T) {
	h := NewHeaders()
	h.Add("x", "1")
	h.Add("x", "2")
	v, ok, err := h.Extract("x")
	if err != nil || !ok || v != "1" {
		t.Fatalf("Extract() = %q, %v, %v; want 1, true, nil", v, ok, err)
	}
	if h.Count("x") != 0 {
		t.Errorf("expected header removed after Extract")
	}
}

func TestHeaders_Locked(t *testing.T) {
	h := NewHeaders()
	h.Add("x", "1")
	h.Lock()
	if err := h.Set("x", "2"); err != ErrLocked {
		t.Errorf("Set() on locked container error = %v; want ErrLocked", err)
	}
	if err := h.Add("y", "1"); err != ErrLocked {
		t.Errorf("Add() on locked container error = %v; want ErrLocked", err)
	}
	h.Lock() // idempotent
}

func TestHeaders_All(t *testing.T) {
	h := NewHeaders()
	h.Add("a", "1")
	h.Add("a", "2")
	h.Add("b", "3")

	pairs := h.All()
	if len(pairs) != 3 {
		t.Fatalf("All() len = %d; want 3", len(pairs))
	}
}

func TestValidateMethod(t *testing.T) {
	cases := []struct {
		method string
		ok     bool
	}{
		{"GET", true},
		{"POST", true},
		{"CONNECT", true},
		{"g", false},
		{"get", false},
		{"TOOLONGMETHODX", false},
	}
	for _, c := range cases {
		err := ValidateMethod(c.method)
		if (err == nil) != c.ok {
			t.Errorf("ValidateMethod(%q) error = %v; want ok=%v", c.method, err, c.ok)
		}
	}
}

func TestValidatePath(t *testing.T) {
	if err := ValidatePath("*"); err != nil {
		t.Errorf("ValidatePath(*) error = %v", err)
	}
	if err := ValidatePath("/a/b"); err != nil {
		t.Errorf("ValidatePath(/a/b) error = %v", err)
	}
	if err := ValidatePath("relative"); err == nil {
		t.Errorf("ValidatePath(relative) expected error")
	}
}

func TestValidateStatusString(t *testing.T) {
	s, err := ValidateStatusString("404")
	if err != nil || s != 404 {
		t.Errorf("ValidateStatusString(404) = %d, %v", s, err)
	}
	if _, err := ValidateStatusString("abc"); err == nil {
		t.Errorf("expected error for non-digit status")
	}
	if _, err := ValidateStatusString("12"); err == nil {
		t.Errorf("expected error for short status")
	}
}

func TestResponse_HasBody(t *testing.T) {
	r := NewResponse(HTTP11, 204)
	if r.HasBody("GET") {
		t.Errorf("204 response should have no body")
	}
	r = NewResponse(HTTP11, 200)
	if !r.HasBody("GET") {
		t.Errorf("200 GET response should have a body")
	}
	if r.HasBody("HEAD") {
		t.Errorf("200 HEAD response should have no body")
	}
	r = NewResponse(HTTP11, 200)
	if r.HasBody("CONNECT") {
		t.Errorf("2xx CONNECT response should have no body")
	}
}
