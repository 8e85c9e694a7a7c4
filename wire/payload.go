// Package wire defines the JSON shape served by the smartmenu state endpoint
// and carried by push updates.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is a possibly partial state document. Pointer fields are nil when
// the key was absent or null; the store treats both as "keep previous".
type Payload struct {
	Session      *string              `json:"session,omitempty"`
	Order        *OrderPayload        `json:"order,omitempty"`
	Totals       *Totals              `json:"totals,omitempty"`
	Flags        *Flags               `json:"flags,omitempty"`
	TableID      *ID                  `json:"tableId,omitempty"`
	EmployeeID   *ID                  `json:"employeeId,omitempty"`
	MenuID       *ID                  `json:"menuId,omitempty"`
	Restaurant   *RestaurantPayload   `json:"restaurant,omitempty"`
	Participants *ParticipantsPayload `json:"participants,omitempty"`
	Version      *int64               `json:"version,omitempty"`

	// hasOrder records key presence, which survives an explicit null.
	hasOrder bool
}

// OrderPayload is the order section. Absent counts decode as zero and absent
// items as nil.
type OrderPayload struct {
	ID                 ID          `json:"id"`
	Status             string      `json:"status"`
	Items              []OrderLine `json:"items,omitempty"`
	AddedCount         Count       `json:"addedCount"`
	OrderedCount       Count       `json:"orderedCount"`
	TotalCount         Count       `json:"totalCount"`
	OpenedCount        Count       `json:"openedCount"`
	RemovedCount       Count       `json:"removedCount"`
	OrderedOnlyCount   Count       `json:"orderedOnlyCount"`
	PreparingCount     Count       `json:"preparingCount"`
	ReadyCount         Count       `json:"readyCount"`
	DeliveredCount     Count       `json:"deliveredCount"`
	BillrequestedCount Count       `json:"billrequestedCount"`
	PaidCount          Count       `json:"paidCount"`
	ClosedCount        Count       `json:"closedCount"`
}

// OrderLine is a single item on the order.
type OrderLine struct {
	ID         ID     `json:"id"`
	MenuItemID ID     `json:"menuitem_id,omitempty"`
	Name       string `json:"name"`
	Price      Amount `json:"price"`
	Status     string `json:"status"`
	SizeName   string `json:"size_name,omitempty"`
}

// Totals are the server-computed bill amounts.
type Totals struct {
	Nett        Amount   `json:"nett"`
	Service     Amount   `json:"service"`
	Tax         Amount   `json:"tax"`
	Gross       Amount   `json:"gross"`
	Covercharge Amount   `json:"covercharge"`
	Tip         Amount   `json:"tip"`
	Currency    Currency `json:"currency"`
}

type Currency struct {
	Code   string `json:"code,omitempty"`
	Symbol string `json:"symbol"`
}

// Flags are server-computed UI gates. A nil field was not sent.
type Flags struct {
	DisplayRequestBill *bool `json:"displayRequestBill,omitempty"`
	PayVisible         *bool `json:"payVisible,omitempty"`
	MenuItemsEnabled   *bool `json:"menuItemsEnabled,omitempty"`
}

type RestaurantPayload struct {
	ID                *ID     `json:"id,omitempty"`
	AllowAlcohol      *bool   `json:"allowAlcohol,omitempty"`
	AllowedNow        *bool   `json:"allowedNow,omitempty"`
	VerifyAgeText     *string `json:"verifyAgeText,omitempty"`
	SalesDisabledText *string `json:"salesDisabledText,omitempty"`
	PolicyBlockedText *string `json:"policyBlockedText,omitempty"`
}

type ParticipantsPayload struct {
	OrderParticipantID *ID `json:"orderParticipantId,omitempty"`
	MenuParticipantID  *ID `json:"menuParticipantId,omitempty"`
}

// HasOrder reports whether the payload carried an "order" key.
func (p *Payload) HasOrder() bool {
	return p.hasOrder || p.Order != nil
}

// SetOrder sets the order section and marks the key as present, even when o is nil.
func (p *Payload) SetOrder(o *OrderPayload) {
	p.Order = o
	p.hasOrder = true
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	type plain Payload
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Payload(v)
	_, p.hasOrder = keys["order"]
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	type plain Payload
	b, err := json.Marshal(plain(p))
	if err != nil || !p.hasOrder || p.Order != nil {
		return b, err
	}
	if bytes.Equal(b, []byte("{}")) {
		return []byte(`{"order":null}`), nil
	}
	return append([]byte(`{"order":null,`), b[1:]...), nil
}

// Decode parses a state document.
func Decode(b []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("wire: decode payload: %w", err)
	}
	return &p, nil
}

// Bool returns a pointer to v, for building payloads in code.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// IDPtr returns a pointer to an ID.
func IDPtr(v string) *ID { id := ID(v); return &id }
