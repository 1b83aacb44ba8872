package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/consentwatch/internal/extract"
)

// ExchangeRequest is the payload of EvaluateExchange. An empty Domain
// evaluates every domain.
type ExchangeRequest struct {
	Capture extract.Capture `json:"capture"`
	Domain  string          `json:"domain,omitempty"`
}

// TextRequest is the payload of EvaluateText.
type TextRequest struct {
	Text string `json:"text"`
}

// HistoryRequest is the payload of History.
type HistoryRequest struct {
	Domain string `json:"domain"`
}

// Encode converts v to a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return structpb.NewStruct(m)
}

// Decode fills v from the JSON form of s.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
