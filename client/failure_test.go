package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   FailureKind
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"detail":"nope"}`, want: FailureAccountInvalid},
		{name: "forbidden without body", status: http.StatusForbidden, want: FailureAccountInvalid},
		{name: "inactive code on 400", status: http.StatusBadRequest, body: `{"code":"user_inactive"}`, want: FailureAccountInvalid},
		{name: "deleted code on 401", status: http.StatusUnauthorized, body: `{"code":"user_deleted"}`, want: FailureAccountInvalid},
		{name: "legacy detail", status: http.StatusUnauthorized, body: `{"detail":"User not found"}`, want: FailureAccountInvalid},
		{name: "legacy detail any case", status: http.StatusBadRequest, body: `{"detail":"INVALID USER"}`, want: FailureAccountInvalid},
		{name: "expired token", status: http.StatusUnauthorized, body: `{"detail":"Given token not valid","code":"token_not_valid"}`, want: FailureUnauthorized},
		{name: "unauthorized without body", status: http.StatusUnauthorized, want: FailureUnauthorized},
		{name: "unauthorized with html", status: http.StatusUnauthorized, body: `<html>401</html>`, want: FailureUnauthorized},
		{name: "unknown code", status: http.StatusBadRequest, body: `{"code":"something_else"}`, want: FailureOther},
		{name: "code is not a string", status: http.StatusUnauthorized, body: `{"code":["user_deleted"]}`, want: FailureUnauthorized},
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail":"Server error"}`, want: FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.status, []byte(tt.body)))
		})
	}
}

func TestFailureKindString(t *testing.T) {
	require.Equal(t, "other", FailureOther.String())
	require.Equal(t, "unauthorized", FailureUnauthorized.String())
	require.Equal(t, "account_invalid", FailureAccountInvalid.String())
}

func apiError(status int, body string) error {
	return trace.Wrap(&APIError{StatusCode: status, Body: []byte(body), Kind: Classify(status, []byte(body))})
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "detail wins",
			err:  apiError(400, `{"detail":"Bad thing","message":"other","non_field_errors":["x"]}`),
			want: "Bad thing",
		},
		{
			name: "message",
			err:  apiError(400, `{"message":"Quota reached","username":["taken"]}`),
			want: "Quota reached",
		},
		{
			name: "non field errors",
			err:  apiError(400, `{"non_field_errors":["Passwords do not match."],"username":["taken"]}`),
			want: "Passwords do not match.",
		},
		{
			name: "username before email",
			err:  apiError(400, `{"email":["Enter a valid email address."],"username":["This field is required."]}`),
			want: "Username: This field is required.",
		},
		{
			name: "email",
			err:  apiError(400, `{"email":["Enter a valid email address."],"password":["Too short."]}`),
			want: "Email: Enter a valid email address.",
		},
		{
			name: "password",
			err:  apiError(400, `{"password":["Too short."]}`),
			want: "Password: Too short.",
		},
		{
			name: "empty field list falls through",
			err:  apiError(400, `{"username":[],"password":["Too short."]}`),
			want: "Password: Too short.",
		},
		{
			name: "unknown body",
			err:  apiError(500, `{"error":"boom"}`),
			want: GenericFailureMessage,
		},
		{
			name: "not json",
			err:  apiError(502, `<html>Bad Gateway</html>`),
			want: GenericFailureMessage,
		},
		{
			name: "deadline",
			err:  trace.Wrap(context.DeadlineExceeded),
			want: TimeoutMessage,
		},
		{
			name: "transport timeout",
			err:  &url.Error{Op: "Get", URL: "http://backend", Err: timeoutError{}},
			want: TimeoutMessage,
		},
		{
			name: "connection refused",
			err:  &url.Error{Op: "Get", URL: "http://backend", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}},
			want: ConnectivityMessage,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: GenericFailureMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Message(tt.err))
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestAPIErrorString(t *testing.T) {
	err := &APIError{StatusCode: 500, Body: []byte(`{"detail":"Server error"}`), Kind: FailureOther}
	require.Equal(t, "http error code=500 kind=other: Server error", err.Error())

	err = &APIError{StatusCode: 502, Kind: FailureOther}
	require.Equal(t, "http error code=502 kind=other", err.Error())
}
