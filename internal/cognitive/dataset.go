package cognitive

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// #region record

// Record is one corpus entry ready for indexing: the text that gets embedded
// plus the scalar and list fields kept as metadata.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// #endregion record

// #region load

// LoadDataset reads a JSON dataset that is either a bare array of units or
// an object with a "units" array.
func LoadDataset(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset(raw)
}

// ParseDataset decodes dataset bytes. Entries without any usable text are skipped.
func ParseDataset(raw []byte) ([]Record, error) {
	var items []map[string]any
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode dataset array: %w", err)
		}
	} else {
		var wrapper struct {
			Units []map[string]any `json:"units"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("decode dataset object: %w", err)
		}
		items = wrapper.Units
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		text := recordText(item)
		if text == "" {
			continue
		}
		id := firstString(item, "id", "unit_id")
		if id == "" {
			id = uuid.New().String()
		}
		records = append(records, Record{ID: id, Text: text, Metadata: metadataOf(item)})
	}
	return records, nil
}

// #endregion load

// #region fields

func recordText(item map[string]any) string {
	if s := firstString(item, "text", "core_reframe", "short_reframe", "short_question"); s != "" {
		return s
	}
	if bank := stringList(item["question_bank"]); len(bank) > 0 {
		return bank[0]
	}
	return ""
}

// metadataOf keeps scalars as-is and string lists as []any so they survive
// a JSON round trip through the corpus store unchanged.
func metadataOf(item map[string]any) map[string]any {
	meta := make(map[string]any, len(item))
	for k, v := range item {
		switch t := v.(type) {
		case string, float64, bool:
			meta[k] = t
		case []any:
			list := make([]any, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					list = append(list, s)
				}
			}
			meta[k] = list
		}
	}
	return meta
}

// #endregion fields
