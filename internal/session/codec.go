package session

import (
	"encoding/json"
	"fmt"
)

// jsonIndent is the indentation for persisted session files, kept
// human-inspectable like every other state file.
const jsonIndent = "  "

// encodeRecord serializes a record, merging its passthrough bag back in.
// Keys owned by the current schema always win over bag entries.
func encodeRecord(rec Record) ([]byte, error) {
	known, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	extra := rec.Meta().Extra
	if len(extra) == 0 {
		return indentJSON(known)
	}

	var merged map[string]json.RawMessage

	unmarshalErr := json.Unmarshal(known, &merged)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("remarshal record: %w", unmarshalErr)
	}

	for key, value := range extra {
		if _, owned := merged[key]; !owned {
			merged[key] = value
		}
	}

	data, err := json.MarshalIndent(merged, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("marshal merged record: %w", err)
	}

	return data, nil
}

// decodeRecord parses data into rec and fills the passthrough bag with every
// field the current schema does not own.
func decodeRecord(data []byte, rec Record) error {
	err := json.Unmarshal(data, rec)
	if err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}

	var raw map[string]json.RawMessage

	rawErr := json.Unmarshal(data, &raw)
	if rawErr != nil {
		return fmt.Errorf("unmarshal raw record: %w", rawErr)
	}

	// Known keys are whatever the freshly decoded record marshals back out.
	known, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("remarshal record: %w", err)
	}

	var owned map[string]json.RawMessage

	ownedErr := json.Unmarshal(known, &owned)
	if ownedErr != nil {
		return fmt.Errorf("unmarshal known keys: %w", ownedErr)
	}

	for key := range owned {
		delete(raw, key)
	}

	if len(raw) > 0 {
		rec.Meta().Extra = raw
	}

	return nil
}

func indentJSON(data []byte) ([]byte, error) {
	var value any

	err := json.Unmarshal(data, &value)
	if err != nil {
		return nil, fmt.Errorf("reindent record: %w", err)
	}

	out, err := json.MarshalIndent(value, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("reindent record: %w", err)
	}

	return out, nil
}
