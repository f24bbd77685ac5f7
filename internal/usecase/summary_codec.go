package usecase

import "encoding/json"

// Cache key TTLs and encodings shared across services.

func encodeSummary(summary *AccountSummary) (string, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeSummary(raw string) (*AccountSummary, error) {
	var summary AccountSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
