package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeConflict, http.StatusBadRequest},
		{CodeInvalidState, http.StatusBadRequest},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeInternal, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeConflict, "Follow request already sent."))
	if !stderrors.Is(err, New(CodeConflict, "")) {
		t.Fatal("expected wrapped error to match conflict code")
	}
	if stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("did not expect match against another code")
	}
}

func TestWrapExposesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeInternal, "", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if err.Error() != "disk full" {
		t.Fatalf("Error() = %q, want cause text", err.Error())
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("HTTPStatus = %d, want 500", HTTPStatus(err))
	}
}

func TestGetCodeAndMetadata(t *testing.T) {
	err := WithMetadata(CodeNotFound, "User not found", map[string]string{"UserID": "u-1"})
	if GetCode(err) != CodeNotFound {
		t.Fatalf("GetCode = %s", GetCode(err))
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatal("expected IsCode to match")
	}
	if GetMetadata(err)["UserID"] != "u-1" {
		t.Fatalf("unexpected metadata: %v", GetMetadata(err))
	}
	plain := stderrors.New("plain")
	if GetCode(plain) != CodeUnknown || GetMetadata(plain) != nil {
		t.Fatal("expected plain errors to carry no domain data")
	}
}
