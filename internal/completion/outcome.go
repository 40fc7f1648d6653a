package completion

import "fmt"

// OutcomeKind enumerates the ways a request can end.
type OutcomeKind int

const (
	KindTransportFailure OutcomeKind = iota
	KindAPIError
	KindContent
	KindEmptyChoices
	KindMissingContent
	KindMalformedBody
	KindUnrecognizedSchema
)

var kindNames = [...]string{
	KindTransportFailure:   "transport_failure",
	KindAPIError:           "api_error",
	KindContent:            "content",
	KindEmptyChoices:       "empty_choices",
	KindMissingContent:     "missing_content",
	KindMalformedBody:      "malformed_body",
	KindUnrecognizedSchema: "unrecognized_schema",
}

func (k OutcomeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the classified result of one request. Text is the line
// written into the conversation.
type Outcome interface {
	Kind() OutcomeKind
	Text() string
}

// IsError reports whether o should be rendered as an error line.
func IsError(o Outcome) bool {
	return o.Kind() != KindContent
}

const unknownField = "unknown"

type TransportFailure struct {
	Reason string
}

func (TransportFailure) Kind() OutcomeKind { return KindTransportFailure }
func (o TransportFailure) Text() string {
	return "Error: Failed to connect to Mistral API: " + o.Reason
}

// APIError is an error envelope returned by the service. Missing fields
// hold "unknown".
type APIError struct {
	Type    string
	Code    string
	Message string
}

func (APIError) Kind() OutcomeKind { return KindAPIError }
func (o APIError) Text() string {
	return fmt.Sprintf("Mistral API Error (%s): %s (Code: %s)",
		orUnknown(o.Type), orUnknown(o.Message), orUnknown(o.Code))
}

// Content is a successful reply.
type Content struct {
	Reply string
}

func (Content) Kind() OutcomeKind { return KindContent }
func (o Content) Text() string    { return o.Reply }

type EmptyChoices struct{}

func (EmptyChoices) Kind() OutcomeKind { return KindEmptyChoices }
func (EmptyChoices) Text() string      { return "Error: No choices in Mistral response." }

type MissingContent struct{}

func (MissingContent) Kind() OutcomeKind { return KindMissingContent }
func (MissingContent) Text() string      { return "Error: No content in Mistral response." }

type MalformedBody struct {
	HTTPStatus int
}

func (MalformedBody) Kind() OutcomeKind { return KindMalformedBody }
func (o MalformedBody) Text() string {
	return fmt.Sprintf("Error: Invalid response from Mistral API. HTTP Status: %d", o.HTTPStatus)
}

type UnrecognizedSchema struct {
	HTTPStatus int
}

func (UnrecognizedSchema) Kind() OutcomeKind { return KindUnrecognizedSchema }
func (o UnrecognizedSchema) Text() string {
	return fmt.Sprintf("Error: Unexpected response format from Mistral API. HTTP Status: %d", o.HTTPStatus)
}

func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}
