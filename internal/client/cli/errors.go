package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/folio/internal/client/client"
	"github.com/dmitrijs2005/folio/internal/client/gate"
)

var errUsage = errors.New("usage")

type usageError string

func (u usageError) Error() string { return "Usage: " + string(u) }
func (u usageError) Unwrap() error { return errUsage }

// fieldErrors come from form validation before anything is sent.
type fieldErrors map[string]string

func (f fieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %s: %s", k, f[k])
	}
	return b.String()
}

// describeError turns an error into the line shown to the user.
func describeError(err error) string {
	var (
		apiErr *client.APIError
		fe     fieldErrors
		ue     usageError
	)
	switch {
	case errors.As(err, &ue):
		return ue.Error()
	case errors.As(err, &fe):
		return "Please fix the following:\n" + fe.Error()
	case errors.Is(err, gate.ErrNotAuthorized):
		return gate.NotAuthorizedMessage
	case errors.Is(err, gate.ErrSessionLoading):
		return "Session is still loading, try again in a moment."
	case errors.As(err, &apiErr):
		if len(apiErr.Fields) > 0 {
			return "Please fix the following:\n" + fieldErrors(apiErr.Fields).Error()
		}
		return apiErr.Message
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable. Please try again later."
	default:
		return "Error: " + err.Error()
	}
}
