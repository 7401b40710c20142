package cloud

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{
			name: "timeout",
			err: &url.Error{Op: "Post", URL: DefaultAuthURL, Err: &net.OpError{
				Op: "dial", Net: "tcp", Err: timeoutError{},
			}},
			wantType:  ErrTypeTimeout,
			retryable: true,
		},
		{
			name: "connection refused",
			err: &url.Error{Op: "Get", URL: DefaultAPIURL, Err: &net.OpError{
				Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED,
			}},
			wantType:  ErrTypeNetwork,
			retryable: true,
		},
		{
			name:      "dns",
			err:       &url.Error{Op: "Get", URL: DefaultAPIURL, Err: &net.DNSError{Name: "publicapi.lightwaverf.com", Err: "no such host"}},
			wantType:  ErrTypeDNS,
			retryable: false,
		},
		{
			name:      "other",
			err:       errors.New("connection reset"),
			wantType:  ErrTypeNetwork,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err)
			if got == nil {
				t.Fatal("expected APIError, got nil")
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
		})
	}

	if ClassifyNetworkError(nil) != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestNewHTTPErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		if got := NewHTTPError(tt.status, "x").Retryable; got != tt.want {
			t.Errorf("NewHTTPError(%d).Retryable = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	auth := fmt.Errorf("login: %w", NewAuthError("bad password"))
	if !IsAuthError(auth) {
		t.Error("IsAuthError should see through wrapping")
	}
	if IsRetryable(auth) {
		t.Error("auth errors are not retryable")
	}
	if IsNetworkError(auth) || IsHTTPError(auth) || IsParseError(auth) {
		t.Error("auth error matched another category")
	}

	if !IsNetworkError(NewNetworkError("failed", timeoutError{})) {
		t.Error("timeout should count as a network error")
	}
	if !IsHTTPError(NewHTTPError(500, "boom")) {
		t.Error("IsHTTPError = false")
	}
	if !IsParseError(NewParseError("bad json", errors.New("eof"))) {
		t.Error("IsParseError = false")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	cause := errors.New("eof")
	err := NewParseError("bad json", cause)

	if !errors.Is(err, cause) {
		t.Error("APIError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "Parse Error: bad json") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	if hint := GetTroubleshootingHint(NewAuthError("x")); !strings.Contains(hint, "smart login") {
		t.Errorf("auth hint = %q", hint)
	}
	if hint := GetTroubleshootingHint(errors.New("x")); !strings.Contains(hint, "unexpected") {
		t.Errorf("generic hint = %q", hint)
	}
}
