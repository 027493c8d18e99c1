package codec

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lucid/internal/retrieval"
)

// #region names
const (
	backendService    = "lucid.v1.Backend"
	reflectionService = "lucid.v1.Reflection"

	completeMethod = "/" + backendService + "/Complete"
	searchMethod   = "/" + backendService + "/Search"
	reflectMethod  = "/" + reflectionService + "/Reflect"
)

// #endregion names

// #region reply
// Reply is the result of a remote reflection turn.
type Reply struct {
	Response  string
	SessionID string
	Metadata  map[string]any
}

// #endregion reply

// #region encoding
// newStruct builds a Struct, widening typed slices structpb cannot encode.
func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(normalize(m).(map[string]any))
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = x
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	default:
		return v
	}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func encodeHits(hits []retrieval.Hit) (*structpb.Struct, error) {
	list := make([]any, len(hits))
	for i, h := range hits {
		meta := h.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		list[i] = map[string]any{
			"id":       h.ID,
			"content":  h.Content,
			"score":    h.Score,
			"metadata": meta,
		}
	}
	return newStruct(map[string]any{"hits": list})
}

func decodeHits(s *structpb.Struct) []retrieval.Hit {
	raw, _ := s.AsMap()["hits"].([]any)
	hits := make([]retrieval.Hit, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		meta, _ := m["metadata"].(map[string]any)
		hits = append(hits, retrieval.Hit{
			ID:       str(m, "id"),
			Content:  str(m, "content"),
			Metadata: meta,
			Score:    num(m, "score"),
		})
	}
	return hits
}

// #endregion encoding
