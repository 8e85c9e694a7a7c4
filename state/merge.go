package state

import (
	"strings"

	"smartmenu/wire"
)

// fromDataset builds the bootstrap snapshot from the context element's
// dataset. Missing keys give zero values; it cannot fail.
func fromDataset(d map[string]string) *Snapshot {
	return &Snapshot{
		Session: d["session"],
		Order: Order{
			ID:     d["orderId"],
			Status: strings.ToLower(d["orderStatus"]),
		},
		TableID:    d["tableId"],
		EmployeeID: d["employeeId"],
		MenuID:     d["menuId"],
		Restaurant: Restaurant{
			ID:                d["restaurantId"],
			AllowAlcohol:      d["allowAlcohol"] == "1",
			AllowedNow:        d["alcoholAllowedNow"] == "1",
			VerifyAgeText:     d["alcoholVerifyAgeText"],
			SalesDisabledText: d["alcoholSalesDisabledText"],
			PolicyBlockedText: d["alcoholPolicyBlockedText"],
		},
		Participants: Participants{
			OrderParticipantID: d["participantId"],
			MenuParticipantID:  d["menuParticipantId"],
		},
	}
}

// merge folds p into prev and returns a new snapshot. The order section is
// replaced wholesale whenever the payload carried the key; everything else
// keeps the previous value when the payload field is absent.
func merge(prev *Snapshot, p *wire.Payload) *Snapshot {
	if prev == nil {
		prev = &Snapshot{}
	}
	next := &Snapshot{
		Session:    coalesce(p.Session, prev.Session),
		Order:      prev.Order,
		Totals:     prev.Totals,
		Flags:      prev.Flags,
		TableID:    coalesceID(p.TableID, prev.TableID),
		EmployeeID: coalesceID(p.EmployeeID, prev.EmployeeID),
		MenuID:     coalesceID(p.MenuID, prev.MenuID),
		Version:    prev.Version,
	}
	if p.HasOrder() {
		next.Order = orderFrom(p.Order)
	}
	if p.Totals != nil {
		t := *p.Totals
		next.Totals = &t
	}
	if p.Flags != nil {
		next.Flags = &Flags{
			DisplayRequestBill: p.Flags.DisplayRequestBill,
			PayVisible:         p.Flags.PayVisible,
			MenuItemsEnabled:   p.Flags.MenuItemsEnabled,
		}
	}
	if next.Flags == nil {
		next.Flags = &Flags{}
	}
	if p.Version != nil {
		next.Version = *p.Version
	}

	next.Restaurant = prev.Restaurant
	if r := p.Restaurant; r != nil {
		next.Restaurant = Restaurant{
			ID:                coalesceID(r.ID, prev.Restaurant.ID),
			AllowAlcohol:      coalesceBool(r.AllowAlcohol, prev.Restaurant.AllowAlcohol),
			AllowedNow:        coalesceBool(r.AllowedNow, prev.Restaurant.AllowedNow),
			VerifyAgeText:     coalesce(r.VerifyAgeText, prev.Restaurant.VerifyAgeText),
			SalesDisabledText: coalesce(r.SalesDisabledText, prev.Restaurant.SalesDisabledText),
			PolicyBlockedText: coalesce(r.PolicyBlockedText, prev.Restaurant.PolicyBlockedText),
		}
	}
	next.Participants = prev.Participants
	if pp := p.Participants; pp != nil {
		next.Participants = Participants{
			OrderParticipantID: coalesceID(pp.OrderParticipantID, prev.Participants.OrderParticipantID),
			MenuParticipantID:  coalesceID(pp.MenuParticipantID, prev.Participants.MenuParticipantID),
		}
	}
	return next
}

// orderFrom builds a fresh order. A null order gives an empty one with
// non-nil items.
func orderFrom(o *wire.OrderPayload) Order {
	if o == nil {
		return Order{Items: []wire.OrderLine{}}
	}
	items := make([]wire.OrderLine, len(o.Items))
	copy(items, o.Items)
	return Order{
		ID:                 string(o.ID),
		Status:             strings.ToLower(o.Status),
		Items:              items,
		AddedCount:         clamp(o.AddedCount),
		OrderedCount:       clamp(o.OrderedCount),
		TotalCount:         clamp(o.TotalCount),
		OpenedCount:        clamp(o.OpenedCount),
		RemovedCount:       clamp(o.RemovedCount),
		OrderedOnlyCount:   clamp(o.OrderedOnlyCount),
		PreparingCount:     clamp(o.PreparingCount),
		ReadyCount:         clamp(o.ReadyCount),
		DeliveredCount:     clamp(o.DeliveredCount),
		BillrequestedCount: clamp(o.BillrequestedCount),
		PaidCount:          clamp(o.PaidCount),
		ClosedCount:        clamp(o.ClosedCount),
	}
}

func clamp(c wire.Count) int {
	if c < 0 {
		return 0
	}
	return int(c)
}

func coalesce(p *string, prev string) string {
	if p != nil {
		return *p
	}
	return prev
}

func coalesceID(p *wire.ID, prev string) string {
	if p != nil {
		return string(*p)
	}
	return prev
}

func coalesceBool(p *bool, prev bool) bool {
	if p != nil {
		return *p
	}
	return prev
}
