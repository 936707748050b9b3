package models

import "strings"

type Gender string

const (
	GenderMale  Gender = "male"
	GenderOther Gender = "other"
)

type MaritalStatus string

const (
	MaritalSingle MaritalStatus = "single"
	MaritalOther  MaritalStatus = "other"
)

type TransactionActivity string

const (
	ActivityActive   TransactionActivity = "active"
	ActivityInactive TransactionActivity = "inactive"
)

// Segment is a customer category segment. Values outside KnownSegments are
// kept verbatim and produce no indicator column.
type Segment string

const (
	SegmentBO2             Segment = "BO2"
	SegmentSwasta          Segment = "Swasta"
	SegmentPendidikan      Segment = "Pendidikan"
	SegmentBUMN            Segment = "BUMN"
	SegmentNonTargetMarket Segment = "Non Target Market"
	SegmentLembagaNegara   Segment = "Lembaga Negara"
	SegmentPensiun         Segment = "Pensiun"
	SegmentRS              Segment = "RS"
)

var KnownSegments = []Segment{
	SegmentBO2,
	SegmentSwasta,
	SegmentPendidikan,
	SegmentBUMN,
	SegmentNonTargetMarket,
	SegmentLembagaNegara,
	SegmentPensiun,
	SegmentRS,
}

// ParseSegment returns the canonical spelling of s when it names a known
// segment, compared case-insensitively. Otherwise s is returned trimmed with
// ok=false.
func ParseSegment(s string) (Segment, bool) {
	trimmed := strings.TrimSpace(s)
	for _, seg := range KnownSegments {
		if strings.EqualFold(trimmed, string(seg)) {
			return seg, true
		}
	}
	return Segment(trimmed), false
}

// CustomerProfile is a validated scoring request.
type CustomerProfile struct {
	Age                 int                 `json:"umur" validate:"gte=0,lte=150"`
	MonthlyIncome       float64             `json:"income" validate:"gte=0"`
	HasPayroll          bool                `json:"payroll"`
	Gender              Gender              `json:"gender" validate:"oneof=male other"`
	MaritalStatus       MaritalStatus       `json:"marital_status" validate:"oneof=single other"`
	TransactionActivity TransactionActivity `json:"transaction_activity" validate:"oneof=active inactive"`
	CategorySegment     Segment             `json:"category_segmen"`
	ExistingProducts    ProductSet          `json:"-"`
}

// SegmentKnown reports whether the profile's segment has an indicator column.
func (p *CustomerProfile) SegmentKnown() bool {
	_, ok := ParseSegment(string(p.CategorySegment))
	return ok
}

// IsActive is the numeric activity indicator used by derived features.
func (p *CustomerProfile) IsActive() bool {
	return p.TransactionActivity == ActivityActive
}
