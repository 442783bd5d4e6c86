package vault

import (
	"bytes"
	"encoding/json"

	"github.com/GlintPay/gccs-vault/backend"
	"github.com/GlintPay/gccs-vault/config"
)

// secretResponse is one of the body shapes returned by the two KV engine versions
type secretResponse interface {
	payload() backend.Payload
}

// KV v1: {"data": <payload>, ...}
type v1Response struct {
	Data json.RawMessage `json:"data"`
}

func (r *v1Response) payload() backend.Payload {
	return rawPayload(r.Data)
}

// KV v2: {"data": {"data": <payload>, "metadata": {...}}, ...}
type v2Response struct {
	Data *v2ResponseData `json:"data"`
}

type v2ResponseData struct {
	Data json.RawMessage `json:"data"`
}

func (r *v2Response) payload() backend.Payload {
	if r.Data == nil {
		return backend.Absent
	}
	return rawPayload(r.Data.Data)
}

func newResponse(version config.VaultVersion) secretResponse {
	if version == config.VaultV2 {
		return &v2Response{}
	}
	return &v1Response{}
}

// Decode extracts the serialized configuration from a 200 response body. Unknown fields are ignored;
// a missing or null field anywhere along the chain yields backend.Absent.
func Decode(body []byte, version config.VaultVersion) (backend.Payload, error) {
	resp := newResponse(version)
	if err := json.Unmarshal(body, resp); err != nil {
		return backend.Absent, err
	}
	return resp.payload(), nil
}

// rawPayload returns JSON strings unquoted and any other JSON value as its raw text
func rawPayload(raw json.RawMessage) backend.Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return backend.Absent
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			return backend.PayloadOf(text)
		}
	}

	return backend.PayloadOf(string(trimmed))
}
