package completion

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

var errInvalidJSON = errors.New("body is not a single JSON document")

// Interpreter classifies a buffered response body.
type Interpreter struct {
	log *zap.SugaredLogger
}

func NewInterpreter(log *zap.SugaredLogger) *Interpreter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Interpreter{log: log}
}

// Interpret maps body and status to exactly one Outcome. It never fails.
//
// Rules apply in order: unparseable body, error envelope, choices array,
// anything else.
func (in *Interpreter) Interpret(body []byte, httpStatus int) Outcome {
	root, err := decodeDocument(body)
	if err != nil {
		in.log.Debugw("unparseable response", "status", httpStatus, "error", err, "body", string(body))
		return MalformedBody{HTTPStatus: httpStatus}
	}
	in.log.Debugw("raw response", "status", httpStatus, "body", string(body))

	obj, ok := root.(map[string]any)
	if !ok {
		in.log.Warnw("unexpected response format", "status", httpStatus, "body", string(body))
		return UnrecognizedSchema{HTTPStatus: httpStatus}
	}

	if errVal, ok := obj["error"]; ok && errVal != nil {
		return apiErrorFrom(errVal)
	}

	if choicesVal, ok := obj["choices"]; ok {
		choices, ok := choicesVal.([]any)
		if !ok {
			in.log.Warnw("unexpected response format", "status", httpStatus, "body", string(body))
			return UnrecognizedSchema{HTTPStatus: httpStatus}
		}
		if len(choices) == 0 {
			return EmptyChoices{}
		}
		text, ok := firstChoiceContent(choices[0])
		if !ok {
			return MissingContent{}
		}
		return Content{Reply: strings.ReplaceAll(text, "\x00", " ")}
	}

	in.log.Warnw("unexpected response format", "status", httpStatus, "body", string(body))
	return UnrecognizedSchema{HTTPStatus: httpStatus}
}

// Interpret classifies body with a discarding logger.
func Interpret(body []byte, httpStatus int) Outcome {
	return NewInterpreter(zap.NewNop().Sugar()).Interpret(body, httpStatus)
}

// decodeDocument parses exactly one JSON value, keeping numbers verbatim.
func decodeDocument(body []byte) (any, error) {
	if !json.Valid(body) {
		return nil, errInvalidJSON
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return root, nil
}

func apiErrorFrom(v any) APIError {
	out := APIError{Type: unknownField, Code: unknownField, Message: unknownField}
	switch e := v.(type) {
	case map[string]any:
		if s, ok := scalarText(e["type"]); ok {
			out.Type = s
		}
		if s, ok := scalarText(e["code"]); ok {
			out.Code = s
		}
		if s, ok := scalarText(e["message"]); ok {
			out.Message = s
		}
	case string:
		out.Message = e
	}
	return out
}

// scalarText renders a string, number or bool member. Absent, null and
// composite values report false.
func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case bool:
		if s {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// firstChoiceContent extracts choice.message.content. Array content is the
// concatenation of its text chunks.
func firstChoiceContent(choice any) (string, bool) {
	c, ok := choice.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := c["message"].(map[string]any)
	if !ok {
		return "", false
	}

	switch content := msg["content"].(type) {
	case string:
		return content, true
	case []any:
		var sb strings.Builder
		found := false
		for _, part := range content {
			p, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := p["type"].(string); ok && t != "text" {
				continue
			}
			if text, ok := p["text"].(string); ok {
				sb.WriteString(text)
				found = true
			}
		}
		return sb.String(), found
	}
	return "", false
}
