package ttauth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCodeOK is the code TikTok puts in the error object of successful
// responses. It is not an error.
const ErrorCodeOK = "ok"

// ProviderError is the error object of the Open API envelope.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id,omitempty"`
}

// IsError reports whether the object describes an actual failure. Only the
// exact "ok" code is treated as success.
func (e *ProviderError) IsError() bool {
	return e != nil && e.Code != "" && e.Code != ErrorCodeOK
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Envelope is the uniform {data, error} response of the Open API.
type Envelope struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Error      *ProviderError  `json:"error,omitempty"`
	Cursor     json.RawMessage `json:"cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
	HTTPStatus int             `json:"-"`
}

// Failed reports whether the envelope carries a real error.
func (e *Envelope) Failed() bool {
	return e != nil && e.Error.IsError()
}

// Decode unmarshals the data object into v.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return &AuthError{Kind: ErrMalformedProviderResponse, Description: "response has no data"}
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return &AuthError{Kind: ErrMalformedProviderResponse, Err: err}
	}
	return nil
}

// AsError converts a failed envelope into an *AuthError of the given kind.
func (e *Envelope) AsError(kind error) *AuthError {
	if !e.Failed() {
		return nil
	}
	return &AuthError{
		Kind:        kind,
		Code:        e.Error.Code,
		Description: e.Error.Message,
		LogID:       e.Error.LogID,
		HTTPStatus:  e.HTTPStatus,
	}
}

// statusEnvelope synthesizes an error envelope for a non-2xx response that
// carried no parseable body.
func statusEnvelope(status int) *Envelope {
	return &Envelope{
		Error: &ProviderError{
			Code:    fmt.Sprintf("http_%d", status),
			Message: http.StatusText(status),
		},
		HTTPStatus: status,
	}
}

// paginationFields are read from data to thread pagination through.
type paginationFields struct {
	Cursor  json.RawMessage `json:"cursor"`
	HasMore bool            `json:"has_more"`
}

// parseEnvelope decodes an Open API body. ok is false when the body is not a
// JSON object.
func parseEnvelope(body []byte, status int) (*Envelope, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false
	}

	env := &Envelope{Data: raw["data"], HTTPStatus: status}
	env.Error = decodeErrorField(raw["error"], raw)

	if len(env.Data) > 0 {
		var page paginationFields
		if err := json.Unmarshal(env.Data, &page); err == nil {
			env.Cursor = page.Cursor
			env.HasMore = page.HasMore
		}
	}
	return env, true
}

// decodeErrorField reads the "error" member in either of its two shapes: an
// object {code, message, log_id} or an OAuth style string accompanied by
// error_description and log_id at the same level.
func decodeErrorField(raw json.RawMessage, body map[string]json.RawMessage) *ProviderError {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var obj ProviderError
	if err := json.Unmarshal(raw, &obj); err == nil {
		return &obj
	}

	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil
	}
	perr := &ProviderError{Code: code}
	if body != nil {
		_ = json.Unmarshal(body["error_description"], &perr.Message)
		_ = json.Unmarshal(body["log_id"], &perr.LogID)
	}
	return perr
}

// providerErrorFromBody inspects a token endpoint body for an error. A
// nested {"code": "ok"} object is not an error. Legacy responses report
// failures as data.error_code with data.description.
func providerErrorFromBody(body map[string]json.RawMessage) *AuthError {
	perr := decodeErrorField(body["error"], body)
	if !perr.IsError() && body["data"] != nil {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(body["data"], &data); err == nil {
			if nested := decodeErrorField(data["error"], data); nested.IsError() {
				perr = nested
			} else if legacy := legacyDataError(data); legacy != nil {
				perr = legacy
			}
		}
	}
	if !perr.IsError() {
		return nil
	}
	return &AuthError{
		Kind:        ErrTokenExchangeFailed,
		Reason:      classifyGrantFailure(perr.Code, perr.Message),
		Code:        perr.Code,
		Description: perr.Message,
		LogID:       perr.LogID,
	}
}

func legacyDataError(data map[string]json.RawMessage) *ProviderError {
	var code json.Number
	if err := json.Unmarshal(data["error_code"], &code); err != nil || code == "" || code == "0" {
		return nil
	}
	perr := &ProviderError{Code: code.String()}
	_ = json.Unmarshal(data["description"], &perr.Message)
	_ = json.Unmarshal(data["log_id"], &perr.LogID)
	return perr
}
