package entity

import (
	"math"
	"time"
)

// Category classifies a bill line item
type Category string

const (
	CategoryRoomRent        Category = "room_rent"
	CategorySurgery         Category = "surgery"
	CategoryConsumables     Category = "consumables"
	CategoryRegistrationFee Category = "registration_fee"
	CategoryMedicines       Category = "medicines"
	CategoryLab             Category = "lab"
	CategoryServiceCharge   Category = "service_charge"
	CategoryOther           Category = "other"
)

var validCategories = map[Category]bool{
	CategoryRoomRent:        true,
	CategorySurgery:         true,
	CategoryConsumables:     true,
	CategoryRegistrationFee: true,
	CategoryMedicines:       true,
	CategoryLab:             true,
	CategoryServiceCharge:   true,
	CategoryOther:           true,
}

// IsValid returns true if the category is part of the controlled vocabulary
func (c Category) IsValid() bool {
	return validCategories[c]
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// DefaultCurrency is used when the bill does not state one
const DefaultCurrency = "INR"

// LineItem is a single charge on a hospital bill
type LineItem struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Amount   float64  `json:"amount"`
	Units    int      `json:"units,omitempty"` // days for room rent, quantity otherwise
	RawText  string   `json:"raw_text,omitempty"`
}

// Bill is a structured hospital discharge bill
type Bill struct {
	BillID        string     `json:"bill_id"`
	BillDate      *time.Time `json:"bill_date,omitempty"`
	HospitalName  string     `json:"hospital_name"`
	PatientName   string     `json:"patient_name"`
	AdmissionDate *time.Time `json:"admission_date,omitempty"`
	DischargeDate *time.Time `json:"discharge_date,omitempty"`
	Diagnosis     []string   `json:"diagnosis,omitempty"`
	Procedures    []string   `json:"procedures,omitempty"`
	LineItems     []LineItem `json:"line_items"`
	StatedTotal   float64    `json:"stated_total,omitempty"`
	Currency      string     `json:"currency"`
}

// Total returns the sum of all line item amounts
func (b *Bill) Total() float64 {
	var paise int64
	for _, item := range b.LineItems {
		paise += ToPaise(item.Amount)
	}
	return FromPaise(paise)
}

// TotalMismatch reports whether the externally stated total differs from the
// computed total by more than tolerance. A missing stated total never mismatches.
func (b *Bill) TotalMismatch(tolerance float64) bool {
	if b.StatedTotal <= 0 {
		return false
	}
	return math.Abs(b.StatedTotal-b.Total()) > tolerance
}

// StayDays returns the number of days between admission and discharge.
// Returns 0 when either date is unknown.
func (b *Bill) StayDays() int {
	if b.AdmissionDate == nil || b.DischargeDate == nil {
		return 0
	}
	days := int(b.DischargeDate.Sub(*b.AdmissionDate).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

// FindLineItem returns the line item with the given id, or nil
func (b *Bill) FindLineItem(id string) *LineItem {
	for i := range b.LineItems {
		if b.LineItems[i].ID == id {
			return &b.LineItems[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the bill
func (b *Bill) Clone() *Bill {
	if b == nil {
		return nil
	}
	c := *b
	c.BillDate = cloneTime(b.BillDate)
	c.AdmissionDate = cloneTime(b.AdmissionDate)
	c.DischargeDate = cloneTime(b.DischargeDate)
	c.Diagnosis = append([]string(nil), b.Diagnosis...)
	c.Procedures = append([]string(nil), b.Procedures...)
	c.LineItems = append([]LineItem(nil), b.LineItems...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
