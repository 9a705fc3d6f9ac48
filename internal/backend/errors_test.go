package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestExecutionErrorMessage(t *testing.T) {
	err := &ExecutionError{
		Kind:    KindRateLimited,
		Backend: "openai",
		ModelID: "gpt-4o",
		Detail:  "quota exhausted",
	}

	want := "openai/gpt-4o: rate_limited: quota exhausted"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	noDetail := &ExecutionError{Kind: KindTimeout, Backend: "ollama", ModelID: "phi3"}
	if got := noDetail.Error(); got != "ollama/phi3: timeout" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindTimeout, true},
		{KindRateLimited, true},
		{KindServerError, true},
		{KindMalformedResponse, false},
	}

	for _, tt := range tests {
		err := &ExecutionError{Kind: tt.kind}
		if got := err.Transient(); got != tt.want {
			t.Errorf("Transient(%s) = %v, want %v", tt.kind, got, tt.want)
		}
		if got := IsTransient(err); got != tt.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}

	if IsTransient(errors.New("plain")) {
		t.Error("IsTransient(plain error) = true, want false")
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := &ExecutionError{Kind: KindServerError, Backend: "vllm", ModelID: "llama3"}
	wrapped := fmt.Errorf("run 2 failed: %w", inner)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("KindOf(wrapped) ok = false, want true")
	}
	if kind != KindServerError {
		t.Fatalf("KindOf(wrapped) = %s, want %s", kind, KindServerError)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("KindOf(plain) ok = true, want false")
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusNotFound, KindMalformedResponse},
		{http.StatusUnauthorized, KindMalformedResponse},
		{http.StatusBadRequest, KindMalformedResponse},
	}

	for _, tt := range tests {
		if got := classifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("classifyHTTPStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestClassifyTransportErr(t *testing.T) {
	if got := classifyTransportErr(context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("deadline exceeded = %s, want %s", got, KindTimeout)
	}
	if got := classifyTransportErr(context.Canceled); got != KindTimeout {
		t.Errorf("canceled = %s, want %s", got, KindTimeout)
	}
	if got := classifyTransportErr(errors.New("connection refused")); got != KindServerError {
		t.Errorf("connection refused = %s, want %s", got, KindServerError)
	}
}
