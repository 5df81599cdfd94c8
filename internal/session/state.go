// Package session models the per-customer SMS conversation state and its persisted token.
package session

import "github.com/Proton-105/pricechek-rider/internal/domain"

// Step identifies where a customer is in the SMS flow.
type Step string

const (
	// StepNeedArea waits for a location such as NAI-Kileleshwa. It is the default.
	StepNeedArea Step = "need_area"
	// StepNeedSearchType waits for 1 (single product) or 2 (batch).
	StepNeedSearchType Step = "need_search_type"
	// StepNeedProducts waits for a product list.
	StepNeedProducts Step = "need_products"
	// StepHaveResults holds the price snapshot last shown to the customer.
	StepHaveResults Step = "have_results"
)

// State is the decoded conversation state. Snapshot is only set for StepHaveResults.
type State struct {
	Step     Step
	Snapshot domain.Snapshot
}

func NeedArea() State { return State{Step: StepNeedArea} }

func NeedSearchType() State { return State{Step: StepNeedSearchType} }

func NeedProducts() State { return State{Step: StepNeedProducts} }

// HaveResults captures snapshot for a later ORDER.
func HaveResults(snapshot domain.Snapshot) State {
	return State{Step: StepHaveResults, Snapshot: snapshot}
}

// PendingSnapshot returns the snapshot an ORDER would consume, if any.
func (s State) PendingSnapshot() (domain.Snapshot, bool) {
	if s.Step != StepHaveResults || len(s.Snapshot) == 0 {
		return nil, false
	}

	return s.Snapshot, true
}

func (s Step) valid() bool {
	switch s {
	case StepNeedArea, StepNeedSearchType, StepNeedProducts, StepHaveResults:
		return true
	default:
		return false
	}
}
