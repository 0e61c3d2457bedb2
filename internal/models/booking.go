package models

import (
	"encoding/json"
	"strings"
)

type BookingForm struct {
	Firstname string `json:"firstname" validate:"required,max=100"`
	Lastname  string `json:"lastname" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=6,max=30"`
	Datetime  string `json:"datetime" validate:"required"`
}

type Booking struct {
	ID int64 `json:"id"`
	BookingForm
}

// BookingDraft holds the wizard selections made before the booking form is posted.
// Nil means not chosen yet.
type BookingDraft struct {
	CategoryID *int64  `json:"categoryId"`
	ServiceID  *int64  `json:"serviceId"`
	StaffID    *int64  `json:"staffId"`
	Date       *string `json:"date"`
	Datetime   *string `json:"datetime"`
}

// DraftPatch is a partial draft posted by the wizard. A key sent as null
// clears the field; a key left out keeps the current value.
type DraftPatch struct {
	BookingDraft
	present map[string]bool
}

// PatchOf is a patch setting every non-nil field of d.
func PatchOf(d BookingDraft) DraftPatch {
	p := DraftPatch{BookingDraft: d, present: map[string]bool{}}
	p.present[draftKeyCategory] = d.CategoryID != nil
	p.present[draftKeyService] = d.ServiceID != nil
	p.present[draftKeyStaff] = d.StaffID != nil
	p.present[draftKeyDate] = d.Date != nil
	p.present[draftKeyDatetime] = d.Datetime != nil
	return p
}

const (
	draftKeyCategory = "categoryId"
	draftKeyService  = "serviceId"
	draftKeyStaff    = "staffId"
	draftKeyDate     = "date"
	draftKeyDatetime = "datetime"
)

var draftKeys = []string{draftKeyCategory, draftKeyService, draftKeyStaff, draftKeyDate, draftKeyDatetime}

func (p *DraftPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var d BookingDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	p.BookingDraft = d
	// keys match case-insensitively, like encoding/json does
	p.present = make(map[string]bool, len(raw))
	for key := range raw {
		for _, known := range draftKeys {
			if strings.EqualFold(key, known) {
				p.present[known] = true
			}
		}
	}
	return nil
}

// Merge returns a copy of d with every field present in patch applied, nulls included.
func (d BookingDraft) Merge(patch DraftPatch) BookingDraft {
	if patch.present[draftKeyCategory] {
		d.CategoryID = patch.CategoryID
	}
	if patch.present[draftKeyService] {
		d.ServiceID = patch.ServiceID
	}
	if patch.present[draftKeyStaff] {
		d.StaffID = patch.StaffID
	}
	if patch.present[draftKeyDate] {
		d.Date = patch.Date
	}
	if patch.present[draftKeyDatetime] {
		d.Datetime = patch.Datetime
	}
	return d
}

// ReadyForSlots reports whether category, service, staff and date are all chosen.
// Zero ids and empty dates count as missing.
func (d BookingDraft) ReadyForSlots() bool {
	return positive(d.CategoryID) && positive(d.ServiceID) && positive(d.StaffID) &&
		d.Date != nil && *d.Date != ""
}

func positive(v *int64) bool {
	return v != nil && *v > 0
}

type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}
