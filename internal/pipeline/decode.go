package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// TransactionListField is the upload field holding the record array.
const TransactionListField = "transactionList"

// DecodeUpload parses an uploaded JSON document and validates every record.
// It fails with ErrInvalidFormat when the payload is not a JSON object with
// an array-valued transactionList, and with a *RecordError when a record
// cannot be normalized. Nothing touches the datastore.
func DecodeUpload(r io.Reader) ([]domain.RawTransactionRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("DecodeUpload: reading payload: %w", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("DecodeUpload: %w: %v", ErrInvalidFormat, err)
	}

	raw, ok := envelope[TransactionListField]
	if !ok {
		return nil, fmt.Errorf("DecodeUpload: %w: missing %s", ErrInvalidFormat, TransactionListField)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("DecodeUpload: %w: %s is not an array", ErrInvalidFormat, TransactionListField)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("DecodeUpload: %w: %v", ErrInvalidFormat, err)
	}

	records := make([]domain.RawTransactionRecord, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &records[i]); err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		if _, err := Normalize(records[i]); err != nil {
			return nil, &RecordError{Index: i, Key: records[i].CombinedKey, Err: err}
		}
	}

	return records, nil
}
