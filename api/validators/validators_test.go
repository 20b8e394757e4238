package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
)

type activateBody struct {
	Email      string `json:"email" validate:"required,email"`
	LicenseKey string `json:"license_key" validate:"required"`
}

type demoBody struct {
	Fingerprint string `json:"fingerprint" validate:"max=256"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	var body activateBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["email"] != "must be a valid email" || details["license_key"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","license_key":"k","extra":1}`))
	var body activateBody
	if err := DecodeJSONBody(req, &body); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeOptionalJSONBodyAcceptsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	var body demoBody
	if err := DecodeOptionalJSONBody(req, &body); err != nil {
		t.Fatalf("expected empty body to pass, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fingerprint":"abc"}`))
	if err := DecodeOptionalJSONBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fingerprint != "abc" {
		t.Fatalf("expected fingerprint decoded, got %q", body.Fingerprint)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingInput(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":    "",
		"trailing": `{"email":"a@x.com","license_key":"k"}{"email":"b@x.com"}`,
		"too big":  `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body activateBody
		if err := DecodeJSONBody(req, &body); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
	req = httptest.NewRequest(http.MethodGet, "/?limit=ten", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected numeric error")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := ParseQueryInt(req, "limit", 25, 1, 100)
	if err != nil || got != 25 {
		t.Fatalf("expected default 25, got %d %v", got, err)
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got, err := ParseQueryBool(req, "activated"); err != nil || got != nil {
		t.Fatalf("expected nil for absent flag, got %v %v", got, err)
	}
	req = httptest.NewRequest(http.MethodGet, "/?activated=false", nil)
	if got, err := ParseQueryBool(req, "activated"); err != nil || got == nil || *got {
		t.Fatalf("expected explicit false, got %v %v", got, err)
	}
	req = httptest.NewRequest(http.MethodGet, "/?activated=maybe", nil)
	if _, err := ParseQueryBool(req, "activated"); err == nil {
		t.Fatal("expected boolean error")
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: "  abcdef ", max: 3, want: "abc"},
		{in: "fp\x00\x1b[31m", max: 0, want: "fp[31m"},
		{in: "héllo", max: 2, want: "h"},
		{in: "ok", max: 10, want: "ok"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
