package schedule

import "fmt"

// AddInstallment appends an empty installment at the document's VAT rate.
func (e *Engine) AddInstallment(list []Installment, vatRate float64) []Installment {
	out := clone(list)
	n := len(out) + 1
	return append(out, e.installment(n, fmt.Sprintf("Acompte %d", n), 0, 0, vatRate))
}

// RemoveInstallment drops the installment with id and renumbers the rest.
// An unknown id returns the list unchanged.
func RemoveInstallment(list []Installment, id string) []Installment {
	idx := indexOf(list, id)
	if idx < 0 {
		return list
	}
	out := make([]Installment, 0, len(list)-1)
	out = append(out, clone(list[:idx])...)
	out = append(out, clone(list[idx+1:])...)
	return renumber(out)
}

// MoveInstallment moves the installment with id to the 1-based position
// (clamped to the list bounds) and renumbers. An unknown id is a no-op.
func MoveInstallment(list []Installment, id string, position int) []Installment {
	idx := indexOf(list, id)
	if idx < 0 {
		return list
	}
	position = max(1, min(position, len(list)))
	out := clone(list)
	moved := out[idx]
	out = append(out[:idx], out[idx+1:]...)
	target := position - 1
	out = append(out[:target], append([]Installment{moved}, out[target:]...)...)
	return renumber(out)
}

// UpdateInstallment merges patch onto the installment with id.
//
// A percentage change recomputes the HT and TTC amounts from totalAmount; an
// HT change recomputes the percentage. TTC is always derived from the
// resulting HT and VAT rate. When both percentage and HT are given the
// percentage wins. Other installments are never touched and an unknown id
// returns the list unchanged.
func UpdateInstallment(list []Installment, id string, patch Patch, totalAmount float64) []Installment {
	idx := indexOf(list, id)
	if idx < 0 {
		return list
	}
	out := clone(list)
	inst := &out[idx]

	if patch.Title != nil {
		inst.Title = *patch.Title
	}
	if patch.Description != nil {
		inst.Description = *patch.Description
	}
	if patch.PlannedDate != nil {
		inst.PlannedDate = *patch.PlannedDate
	}
	if patch.Milestone != nil {
		inst.Milestone = *patch.Milestone
	}
	if patch.PhaseIDs != nil {
		inst.PhaseIDs = append([]string(nil), (*patch.PhaseIDs)...)
	}
	if patch.VATRate != nil {
		inst.VATRate = *patch.VATRate
	}
	if patch.Percentage != nil {
		inst.Percentage = *patch.Percentage
	}
	if patch.AmountHT != nil {
		inst.AmountHT = *patch.AmountHT
	}

	switch {
	case patch.Percentage != nil:
		inst.AmountHT = totalAmount * inst.Percentage / 100
	case patch.AmountHT != nil:
		inst.Percentage = share(inst.AmountHT, totalAmount)
	}
	inst.AmountTTC = TTC(inst.AmountHT, inst.VATRate)
	return out
}

func indexOf(list []Installment, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
