package domain

import (
	"fmt"

	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Allocation is one planned debit of a batch
type Allocation struct {
	BatchID        string
	IngredientID   string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Status         BatchStatus
	RemainingAfter decimal.Decimal
}

// FullyConsumed reports whether the debit empties the batch
func (a Allocation) FullyConsumed() bool {
	return a.RemainingAfter.IsZero()
}

// MergeIngredientRequests sums requests for the same ingredient, keeping first-seen order
func MergeIngredientRequests(requests []IngredientRequest) []IngredientRequest {
	index := make(map[string]int, len(requests))
	merged := make([]IngredientRequest, 0, len(requests))
	for _, r := range requests {
		if i, ok := index[r.IngredientID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(r.Quantity)
			continue
		}
		index[r.IngredientID] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

// PlanFEFO greedily consumes candidates in the order given until each request is met.
// candidates maps ingredient id to its available batches in ledger order.
// When any ingredient cannot be covered, no allocations are returned and every
// short ingredient is reported with the requested and available totals.
func PlanFEFO(requests []IngredientRequest, candidates map[string][]*Batch) ([]Allocation, []errors.LineError) {
	var allocations []Allocation
	var shortfalls []errors.LineError

	for i, req := range MergeIngredientRequests(requests) {
		available := decimal.Zero
		for _, b := range candidates[req.IngredientID] {
			if b.Status == BatchStatusAvailable {
				available = available.Add(b.RemainingQuantity)
			}
		}

		if available.LessThan(req.Quantity) {
			requested, avail := req.Quantity, available
			shortfalls = append(shortfalls, errors.LineError{
				Line:         i + 1,
				IngredientID: req.IngredientID,
				Message:      "not enough available stock",
				Requested:    &requested,
				Available:    &avail,
			})
			continue
		}

		outstanding := req.Quantity
		for _, b := range candidates[req.IngredientID] {
			if !outstanding.IsPositive() {
				break
			}
			if b.Status != BatchStatusAvailable || !b.RemainingQuantity.IsPositive() {
				continue
			}
			take := decimal.Min(outstanding, b.RemainingQuantity)
			allocations = append(allocations, Allocation{
				BatchID:        b.ID,
				IngredientID:   b.IngredientID,
				Quantity:       take,
				UnitPrice:      b.UnitPrice,
				Status:         b.Status,
				RemainingAfter: b.RemainingQuantity.Sub(take),
			})
			outstanding = outstanding.Sub(take)
		}
	}

	if len(shortfalls) > 0 {
		return nil, shortfalls
	}
	return allocations, nil
}

// PlanManual checks explicit batch lines against the batches they name.
// Lines naming the same batch are merged into one allocation and checked against
// the batch's remaining quantity together.
// invalid lists lines that can never succeed as written (unknown batch, ineligible status).
// short lists lines that exceed what the batch still holds.
func PlanManual(lines []ExportLine, batches map[string]*Batch, reason ExportReason) (allocations []Allocation, invalid, short []errors.LineError) {
	used := make(map[string]decimal.Decimal)
	index := make(map[string]int)

	for i, l := range lines {
		lineNo := i + 1
		b, ok := batches[l.BatchID]
		if !ok {
			invalid = append(invalid, errors.LineError{Line: lineNo, BatchID: l.BatchID, Message: "batch not found"})
			continue
		}
		if !l.Quantity.IsPositive() {
			invalid = append(invalid, errors.LineError{Line: lineNo, BatchID: l.BatchID, Field: "quantity", Message: "must be greater than zero"})
			continue
		}
		if !reason.Allows(b.Status) {
			invalid = append(invalid, errors.LineError{
				Line:         lineNo,
				BatchID:      b.ID,
				IngredientID: b.IngredientID,
				Field:        "status",
				Message:      fmt.Sprintf("batch is %s and cannot be exported with reason %s", b.Status, reason),
			})
			continue
		}

		already := used[b.ID]
		left := b.RemainingQuantity.Sub(already)
		if l.Quantity.GreaterThan(left) {
			requested := l.Quantity
			short = append(short, errors.LineError{
				Line:         lineNo,
				BatchID:      b.ID,
				IngredientID: b.IngredientID,
				Field:        "quantity",
				Message:      "exceeds remaining quantity",
				Requested:    &requested,
				Available:    &left,
			})
			continue
		}
		used[b.ID] = already.Add(l.Quantity)

		if j, ok := index[b.ID]; ok {
			allocations[j].Quantity = allocations[j].Quantity.Add(l.Quantity)
			allocations[j].RemainingAfter = b.RemainingQuantity.Sub(allocations[j].Quantity)
			continue
		}
		index[b.ID] = len(allocations)
		allocations = append(allocations, Allocation{
			BatchID:        b.ID,
			IngredientID:   b.IngredientID,
			Quantity:       l.Quantity,
			UnitPrice:      b.UnitPrice,
			Status:         b.Status,
			RemainingAfter: b.RemainingQuantity.Sub(l.Quantity),
		})
	}

	if len(invalid) > 0 || len(short) > 0 {
		return nil, invalid, short
	}
	return allocations, nil, nil
}
