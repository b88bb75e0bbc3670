package trigger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"stockalert/internal/domain"
)

// Request asks for one alert cycle over selected condition kinds.
// Params: kind names (empty means every kind) and optional requester label for logs.
// Returns: decoded trigger payload.
type Request struct {
	Kinds       []string `json:"kinds,omitempty"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// DecodeRequest decodes one trigger payload and resolves kind names.
// Params: raw JSON object; an empty payload runs every kind.
// Returns: request, resolved kinds in evaluation order, or decode error.
func DecodeRequest(raw []byte) (Request, []domain.ConditionKind, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return Request{}, domain.AllKinds(), nil
	}

	var request Request
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		return Request{}, nil, fmt.Errorf("decode trigger request: %w", err)
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return Request{}, nil, err
	}
	request.RequestedBy = strings.TrimSpace(request.RequestedBy)

	kinds, err := resolveKinds(request.Kinds)
	if err != nil {
		return Request{}, nil, err
	}
	return request, kinds, nil
}

func resolveKinds(names []string) ([]domain.ConditionKind, error) {
	if len(names) == 0 {
		return domain.AllKinds(), nil
	}
	requested := make(map[domain.ConditionKind]struct{}, len(names))
	for i, name := range names {
		kind, err := domain.ParseConditionKind(name)
		if err != nil {
			return nil, fmt.Errorf("kinds[%d]: %w", i, err)
		}
		requested[kind] = struct{}{}
	}
	out := make([]domain.ConditionKind, 0, len(requested))
	for _, kind := range domain.AllKinds() {
		if _, ok := requested[kind]; ok {
			out = append(out, kind)
		}
	}
	return out, nil
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}
