package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
)

// Describe renders err for the error field of a queue document. A
// transport's structured error body wins over the error message, and the
// message wins over a Go-syntax dump. Joined errors are described
// branch by branch. Context added by wrapping a transport error, such as
// the target it was sent to, is kept in front of the body.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var parts []string
		for _, e := range joined.Unwrap() {
			if d := Describe(e); d != "" {
				parts = append(parts, d)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}

	var te *provider.TransportError
	if errors.As(err, &te) {
		if body, ok := te.StructuredBody(); ok {
			var buf bytes.Buffer
			if json.Compact(&buf, body) == nil {
				if prefix, ok := strings.CutSuffix(err.Error(), te.Error()); ok {
					return prefix + buf.String()
				}
				return buf.String()
			}
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%#v", err)
}
