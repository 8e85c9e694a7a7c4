// Package state holds the order-state store: the single in-memory copy of the
// guest's session, order and totals, the merge rules that fold server payloads
// into it, and the topics that fan changes out to views.
package state

import "smartmenu/wire"

// Snapshot is the complete client-local state. Snapshots are never mutated
// after the store publishes them.
type Snapshot struct {
	Session      string       `json:"session"`
	Order        Order        `json:"order"`
	Totals       *wire.Totals `json:"totals"`
	Flags        *Flags       `json:"flags"`
	TableID      string       `json:"tableId"`
	EmployeeID   string       `json:"employeeId"`
	MenuID       string       `json:"menuId"`
	Restaurant   Restaurant   `json:"restaurant"`
	Participants Participants `json:"participants"`
	Version      int64        `json:"version"`
}

// Order mirrors the order section. ID "" means there is no active order.
// Items is nil until a JSON payload carried the order.
type Order struct {
	ID                 string           `json:"id"`
	Status             string           `json:"status"`
	Items              []wire.OrderLine `json:"items"`
	AddedCount         int              `json:"addedCount"`
	OrderedCount       int              `json:"orderedCount"`
	TotalCount         int              `json:"totalCount"`
	OpenedCount        int              `json:"openedCount"`
	RemovedCount       int              `json:"removedCount"`
	OrderedOnlyCount   int              `json:"orderedOnlyCount"`
	PreparingCount     int              `json:"preparingCount"`
	ReadyCount         int              `json:"readyCount"`
	DeliveredCount     int              `json:"deliveredCount"`
	BillrequestedCount int              `json:"billrequestedCount"`
	PaidCount          int              `json:"paidCount"`
	ClosedCount        int              `json:"closedCount"`
}

// Flags are the server UI gates. A nil field was never sent.
type Flags struct {
	DisplayRequestBill *bool `json:"displayRequestBill,omitempty"`
	PayVisible         *bool `json:"payVisible,omitempty"`
	MenuItemsEnabled   *bool `json:"menuItemsEnabled,omitempty"`
}

type Restaurant struct {
	ID                string `json:"id"`
	AllowAlcohol      bool   `json:"allowAlcohol"`
	AllowedNow        bool   `json:"allowedNow"`
	VerifyAgeText     string `json:"verifyAgeText"`
	SalesDisabledText string `json:"salesDisabledText"`
	PolicyBlockedText string `json:"policyBlockedText"`
}

type Participants struct {
	OrderParticipantID string `json:"orderParticipantId"`
	MenuParticipantID  string `json:"menuParticipantId"`
}

// MenuChange is published on the menu topic.
type MenuChange struct {
	MenuID string `json:"menuId"`
}

// FlagsChange is published on the flags topic.
type FlagsChange struct {
	Restaurant Restaurant `json:"restaurant"`
	Flags      *Flags     `json:"flags"`
}

// Order statuses the views branch on.
const (
	StatusOpened        = "opened"
	StatusOrdered       = "ordered"
	StatusPreparing     = "preparing"
	StatusReady         = "ready"
	StatusDelivered     = "delivered"
	StatusBillRequested = "billrequested"
	StatusPaid          = "paid"
	StatusClosed        = "closed"
	StatusRemoved       = "removed"
)

// HasOrder reports whether an order context is active.
func (s *Snapshot) HasOrder() bool { return s.Order.ID != "" }

// Hydrated reports whether server flags have arrived.
func (s *Snapshot) Hydrated() bool { return s.Flags != nil }

// RequestBillVisible is true only for an explicit displayRequestBill=true.
func (s *Snapshot) RequestBillVisible() bool {
	return s.Flags != nil && s.Flags.DisplayRequestBill != nil && *s.Flags.DisplayRequestBill
}

// PayVisible is true only for an explicit payVisible=true.
func (s *Snapshot) PayVisible() bool {
	return s.Flags != nil && s.Flags.PayVisible != nil && *s.Flags.PayVisible
}

// NeedsHydration is true while flags, the request-bill flag or totals are missing.
func (s *Snapshot) NeedsHydration() bool {
	return s.Flags == nil || s.Flags.DisplayRequestBill == nil || s.Totals == nil
}

// ItemsHydrated reports whether the order items came from a JSON payload.
func (s *Snapshot) ItemsHydrated() bool { return s.Order.Items != nil }
