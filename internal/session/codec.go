package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Proton-105/pricechek-rider/internal/domain"
)

const (
	resultsPrefix     = string(StepHaveResults) + ":"
	legacyStepPrefix  = "sms_step:"
	legacyPricePrefix = "prices:"
)

// Encode renders state as the token stored on the customer record.
func Encode(state State) (string, error) {
	if !state.Step.valid() {
		return "", fmt.Errorf("encode session: unknown step %q", state.Step)
	}

	if state.Step != StepHaveResults {
		return string(state.Step), nil
	}

	snapshot := state.Snapshot
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode session snapshot: %w", err)
	}

	return resultsPrefix + string(data), nil
}

// Decode parses a stored token. Empty, unknown or corrupt tokens decode to NeedArea.
// Tokens written by the previous service ("sms_step:<step>" and "prices:<json object>") are accepted.
func Decode(token string) State {
	token = strings.TrimSpace(token)

	switch {
	case token == "":
		return NeedArea()
	case strings.HasPrefix(token, resultsPrefix):
		var snapshot domain.Snapshot
		if err := json.Unmarshal([]byte(token[len(resultsPrefix):]), &snapshot); err != nil {
			return NeedArea()
		}
		return HaveResults(snapshot)
	case strings.HasPrefix(token, legacyPricePrefix):
		snapshot, err := decodeLegacySnapshot(token[len(legacyPricePrefix):])
		if err != nil {
			return NeedArea()
		}
		return HaveResults(snapshot)
	case strings.HasPrefix(token, legacyStepPrefix):
		token = token[len(legacyStepPrefix):]
	}

	step := Step(token)
	if !step.valid() || step == StepHaveResults {
		return NeedArea()
	}

	return State{Step: step}
}

// decodeLegacySnapshot reads a JSON object of product name to offers, keeping key order.
func decodeLegacySnapshot(data string) (domain.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("legacy snapshot: expected object")
	}

	snapshot := domain.Snapshot{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		product, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("legacy snapshot: expected product name")
		}

		var offers []domain.Offer
		if err := dec.Decode(&offers); err != nil {
			return nil, fmt.Errorf("legacy snapshot %q: %w", product, err)
		}
		snapshot = snapshot.Set(product, offers)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return snapshot, nil
}
