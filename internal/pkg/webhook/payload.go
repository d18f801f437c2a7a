package webhook

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedPayload is returned when a request body is neither a JSON
// object nor a parseable form body.
var ErrMalformedPayload = errors.New("webhook: malformed payload")

// DecodePayload turns a raw webhook body into a generic payload map. aMember
// posts form encoded bodies with PHP style bracket nesting
// (am-webhooks plugin: user[email]=..., access[access_id]=...); newer setups
// and test harnesses post JSON. The content type header decides which decoder
// runs first, the other is the fallback.
func DecodePayload(body []byte, contentType string) (map[string]any, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(ct, "application/json") {
		return decodeJSON(body)
	}
	if strings.Contains(ct, "form") {
		return decodeForm(body)
	}

	if m, err := decodeJSON(body); err == nil {
		return m, nil
	}
	return decodeForm(body)
}

func decodeJSON(body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil || m == nil {
		return nil, ErrMalformedPayload
	}
	return m, nil
}

// decodeForm parses a urlencoded body and rebuilds the nested structure from
// bracket keys, so "access[access_id]=3911" becomes payload["access"] being a
// map with "access_id" set to "3911". Only one nesting level exists on the
// aMember wire.
func decodeForm(body []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		return nil, ErrMalformedPayload
	}

	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		val := vals[0]

		open := strings.IndexByte(key, '[')
		if open > 0 && strings.HasSuffix(key, "]") {
			parent := key[:open]
			child := key[open+1 : len(key)-1]
			nested, ok := out[parent].(map[string]any)
			if !ok {
				nested = make(map[string]any)
				out[parent] = nested
			}
			nested[child] = val
			continue
		}
		out[key] = val
	}
	return out, nil
}
