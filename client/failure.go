package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"

	"github.com/pbis/authclient/lib"
)

// FailureKind is the classification of a failed response.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureUnauthorized
	FailureAccountInvalid
)

func (k FailureKind) String() string {
	switch k {
	case FailureUnauthorized:
		return "unauthorized"
	case FailureAccountInvalid:
		return "account_invalid"
	default:
		return "other"
	}
}

// AccountErrorCodes is the closed set of backend error codes meaning the
// account itself is no longer usable.
var AccountErrorCodes = map[string]struct{}{
	"user_not_found": {},
	"user_inactive":  {},
	"user_deleted":   {},
	"invalid_user":   {},
}

// accountErrorDetails are free-text details sent by backends that predate
// the error codes. Compared lowercased.
var accountErrorDetails = map[string]struct{}{
	"user not found": {},
	"user deleted":   {},
	"invalid user":   {},
}

// Classify maps a failed response to a FailureKind. Rules are evaluated in
// order and the first match wins.
func Classify(statusCode int, body []byte) FailureKind {
	if statusCode == http.StatusForbidden {
		return FailureAccountInvalid
	}
	if len(body) > 0 && gjson.ValidBytes(body) {
		if code := gjson.GetBytes(body, "code"); code.Type == gjson.String {
			if _, ok := AccountErrorCodes[code.Str]; ok {
				return FailureAccountInvalid
			}
		}
		if detail := gjson.GetBytes(body, "detail"); detail.Type == gjson.String {
			if _, ok := accountErrorDetails[strings.ToLower(strings.TrimSpace(detail.Str))]; ok {
				return FailureAccountInvalid
			}
		}
	}
	if statusCode == http.StatusUnauthorized {
		return FailureUnauthorized
	}
	return FailureOther
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       []byte
	Kind       FailureKind
}

func (e *APIError) Error() string {
	if msg := bodyMessage(e.Body); msg != "" {
		return fmt.Sprintf("http error code=%d kind=%v: %s", e.StatusCode, e.Kind, msg)
	}
	return fmt.Sprintf("http error code=%d kind=%v", e.StatusCode, e.Kind)
}

// AsAPIError extracts the *APIError from a possibly wrapped error.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) || errors.As(trace.Unwrap(err), &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Notification texts.
const (
	AccountIssueMessage   = "Account issue. Logging out..."
	SessionExpiredMessage = "Session expired. Please login again."
	TooManyRefreshMessage = "Too many session refreshes. Please try again shortly."
	ConnectivityMessage   = "Unable to connect to server. Please check your connection."
	TimeoutMessage        = "Request timed out. Please try again."
	GenericFailureMessage = "Something went wrong. Please try again."
)

// fieldErrors are the structured field errors surfaced, in precedence order,
// with their display label.
var fieldErrors = []struct {
	field string
	label string
}{
	{"non_field_errors", ""},
	{"username", "Username"},
	{"email", "Email"},
	{"password", "Password"},
}

// Message derives the user-facing text for a failed request.
func Message(err error) string {
	if apiErr, ok := AsAPIError(err); ok {
		if msg := bodyMessage(apiErr.Body); msg != "" {
			return msg
		}
	}
	switch {
	case lib.IsDeadline(err):
		return TimeoutMessage
	case lib.IsConnectivity(err):
		return ConnectivityMessage
	}
	return GenericFailureMessage
}

func bodyMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	if msg := firstString(body, "detail"); msg != "" {
		return msg
	}
	if msg := firstString(body, "message"); msg != "" {
		return msg
	}
	for _, fe := range fieldErrors {
		msg := firstString(body, fe.field)
		if msg == "" {
			continue
		}
		if fe.label == "" {
			return msg
		}
		return fe.label + ": " + msg
	}
	return ""
}

// firstString returns the field when it is a string, or its first element
// when it is an array of strings.
func firstString(body []byte, field string) string {
	res := gjson.GetBytes(body, field)
	if res.IsArray() {
		items := res.Array()
		if len(items) == 0 {
			return ""
		}
		res = items[0]
	}
	if res.Type != gjson.String {
		return ""
	}
	return res.Str
}
