package dispatcher

import (
	"fmt"
	"strings"
)

// Separator splits the parts of a response token. It is the ASCII unit
// separator, which never appears in identifiers or messages.
const Separator = "\x1f"

// Status is the outcome class of a command.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusRefresh
	StatusErrorRefresh
	StatusUpdateIDs
	StatusUnauthorized
	// StatusChanged is never a reply. It is pushed to other open surfaces
	// when a partial edit changed the template they show.
	StatusChanged
)

var statusTokens = map[Status]string{
	StatusOK:           "ok",
	StatusError:        "error",
	StatusRefresh:      "refresh",
	StatusErrorRefresh: "error-refresh",
	StatusUpdateIDs:    "update-ids",
	StatusUnauthorized: "unauthorized",
	StatusChanged:      "changed",
}

func (s Status) String() string {
	if tok, ok := statusTokens[s]; ok {
		return tok
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Response is what the designer surface needs to drive its next render.
type Response struct {
	Status  Status
	Message string    // error and error-refresh only
	IDs     [2]string // update-ids only: old and new client id
}

func ok() Response { return Response{Status: StatusOK} }

func refresh() Response { return Response{Status: StatusRefresh} }

func unauthorized() Response { return Response{Status: StatusUnauthorized} }

func failure(msg string) Response { return Response{Status: StatusError, Message: msg} }

func conflict(msg string) Response { return Response{Status: StatusErrorRefresh, Message: msg} }

func updateIDs(ids []string) Response {
	r := Response{Status: StatusUpdateIDs}
	copy(r.IDs[:], ids)
	return r
}

// Encode renders the response as a status token:
//
//	ok | error␟msg | refresh | error-refresh␟msg | update-ids␟id1␟id2 | unauthorized | changed
func (r Response) Encode() string {
	switch r.Status {
	case StatusError, StatusErrorRefresh:
		return r.Status.String() + Separator + sanitizeMessage(r.Message)
	case StatusUpdateIDs:
		return r.Status.String() + Separator + r.IDs[0] + Separator + r.IDs[1]
	default:
		return r.Status.String()
	}
}

// sanitizeMessage keeps a message from forging extra token fields.
func sanitizeMessage(msg string) string {
	return strings.ReplaceAll(msg, Separator, " ")
}

// ParseResponse decodes a status token produced by Encode.
func ParseResponse(token string) (Response, error) {
	parts := strings.Split(token, Separator)
	for status, tok := range statusTokens {
		if parts[0] != tok {
			continue
		}
		r := Response{Status: status}
		switch status {
		case StatusError, StatusErrorRefresh:
			if len(parts) != 2 {
				return Response{}, fmt.Errorf("token %q: want a message: %w", parts[0], ErrMalformedPayload)
			}
			r.Message = parts[1]
		case StatusUpdateIDs:
			if len(parts) != 3 {
				return Response{}, fmt.Errorf("token %q: want two ids: %w", parts[0], ErrMalformedPayload)
			}
			r.IDs = [2]string{parts[1], parts[2]}
		default:
			if len(parts) != 1 {
				return Response{}, fmt.Errorf("token %q takes no arguments: %w", parts[0], ErrMalformedPayload)
			}
		}
		return r, nil
	}
	return Response{}, fmt.Errorf("unknown status token %q: %w", parts[0], ErrMalformedPayload)
}
