/*
Package factory provides JSON to Go leave-catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into leave types, policies and
  conversion rules, then writes them through the store. This enables
  catalog configuration without code changes - HR can define leave
  types, limits and overflow chains in JSON.

WHY JSON?
  - Non-developers can modify the catalog
  - Easy integration with admin UI
  - Version control for catalog definitions
  - Database storage of catalog configs

JSON SCHEMA:
  {
    "leave_types": [
      {"id": "lt-paid", "code": "PAID", "name": "Paid Annual Leave",
       "category": "ANNUAL", "is_active": true}
    ],
    "policies": [
      {"id": "pol-sick", "leave_type_id": "lt-sick",
       "effective_from": "2020-01-01",
       "max_per_request_days": 3, "min_duration_days": 0.5}
    ],
    "conversions": [
      {"from": "lt-sick", "to": "lt-paid", "priority": 1,
       "reason": "EXCEED_MAX_PER_REQUEST", "is_active": true}
    ]
  }

USAGE:
  cat, err := factory.ParseCatalog(jsonString)
  err = factory.Apply(ctx, store, cat)

  // Or seed the shipped defaults:
  err = factory.SeedDefaults(ctx, store)

SEE ALSO:
  - leave/policy.go: LeaveTypePolicy and Conversion definitions
  - store/sqlite: the Catalog implementation used in production
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Catalog is the write surface the factory seeds through. The SQLite
// store satisfies it.
type Catalog interface {
	SaveLeaveType(ctx context.Context, lt leave.LeaveType) error
	SavePolicy(ctx context.Context, p leave.LeaveTypePolicy) error
	SaveConversion(ctx context.Context, c leave.Conversion) error
}

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a full leave catalog.
type CatalogJSON struct {
	LeaveTypes  []LeaveTypeJSON  `json:"leave_types"`
	Policies    []PolicyJSON     `json:"policies,omitempty"`
	Conversions []ConversionJSON `json:"conversions,omitempty"`
}

// LeaveTypeJSON is one leave type definition.
type LeaveTypeJSON struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	IsSystem bool   `json:"is_system,omitempty"`
	IsActive bool   `json:"is_active"`
}

// PolicyJSON is one effective-dated policy definition. Absent limits
// mean "no limit".
type PolicyJSON struct {
	ID            string `json:"id"`
	LeaveTypeID   string `json:"leave_type_id"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`

	MaxPerRequestDays    *float64 `json:"max_per_request_days,omitempty"`
	MinDurationDays      *float64 `json:"min_duration_days,omitempty"`
	AllowNegative        bool     `json:"allow_negative,omitempty"`
	MaxNegativeLimitDays *float64 `json:"max_negative_limit_days,omitempty"`
	AnnualLimitDays      *float64 `json:"annual_limit_days,omitempty"`
	MonthlyLimitDays     *float64 `json:"monthly_limit_days,omitempty"`
	AutoCalculateEndDate bool     `json:"auto_calculate_end_date,omitempty"`
}

// ConversionJSON is one waterfall edge.
type ConversionJSON struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason"`
	IsActive bool   `json:"is_active"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog parses a JSON catalog string.
func ParseCatalog(jsonStr string) (CatalogJSON, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return CatalogJSON{}, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return cj, nil
}

func (tj LeaveTypeJSON) toLeaveType() (leave.LeaveType, error) {
	switch leave.Category(tj.Category) {
	case leave.CategoryAnnual, leave.CategoryParental, leave.CategoryPolicy, leave.CategorySocial:
	default:
		return leave.LeaveType{}, fmt.Errorf("leave type %s: unknown category %q", tj.ID, tj.Category)
	}
	return leave.LeaveType{
		ID:           leave.LeaveTypeID(tj.ID),
		Code:         tj.Code,
		Name:         tj.Name,
		CategoryCode: leave.Category(tj.Category),
		IsSystem:     tj.IsSystem,
		IsActive:     tj.IsActive,
	}, nil
}

func (pj PolicyJSON) toPolicy() (leave.LeaveTypePolicy, error) {
	p := leave.LeaveTypePolicy{
		ID:                   pj.ID,
		LeaveTypeID:          leave.LeaveTypeID(pj.LeaveTypeID),
		AllowNegative:        pj.AllowNegative,
		AutoCalculateEndDate: pj.AutoCalculateEndDate,
	}

	var err error
	if p.EffectiveFrom, err = leave.ParseDate(pj.EffectiveFrom); err != nil {
		return p, fmt.Errorf("policy %s: %w", pj.ID, err)
	}
	if pj.EffectiveTo != "" {
		d, err := leave.ParseDate(pj.EffectiveTo)
		if err != nil {
			return p, fmt.Errorf("policy %s: %w", pj.ID, err)
		}
		p.EffectiveTo = &d
	}

	p.MaxPerRequestDays = halfDayAmount(pj.MaxPerRequestDays)
	p.MinDurationDays = halfDayAmount(pj.MinDurationDays)
	p.MaxNegativeLimitDays = halfDayAmount(pj.MaxNegativeLimitDays)
	p.AnnualLimitDays = halfDayAmount(pj.AnnualLimitDays)
	p.MonthlyLimitDays = halfDayAmount(pj.MonthlyLimitDays)

	for name, v := range map[string]*decimal.Decimal{
		"max_per_request_days":    p.MaxPerRequestDays,
		"min_duration_days":       p.MinDurationDays,
		"max_negative_limit_days": p.MaxNegativeLimitDays,
		"annual_limit_days":       p.AnnualLimitDays,
		"monthly_limit_days":      p.MonthlyLimitDays,
	} {
		if v != nil && !leave.IsHalfStep(*v) {
			return p, fmt.Errorf("policy %s: %s must be a multiple of 0.5", pj.ID, name)
		}
	}
	return p, nil
}

func (cj ConversionJSON) toConversion() (leave.Conversion, error) {
	reason := leave.ConversionReason(cj.Reason)
	if reason != leave.ReasonExceedMaxPerRequest && reason != leave.ReasonExceedBalance {
		return leave.Conversion{}, fmt.Errorf("conversion %s->%s: unknown reason %q", cj.From, cj.To, cj.Reason)
	}
	return leave.Conversion{
		FromLeaveTypeID: leave.LeaveTypeID(cj.From),
		ToLeaveTypeID:   leave.LeaveTypeID(cj.To),
		Priority:        cj.Priority,
		Reason:          reason,
		IsActive:        cj.IsActive,
	}, nil
}

func halfDayAmount(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

// =============================================================================
// APPLY
// =============================================================================

// Apply writes a parsed catalog through the store. Leave types first so
// policy and conversion foreign keys resolve.
func Apply(ctx context.Context, cat Catalog, cj CatalogJSON) error {
	for _, tj := range cj.LeaveTypes {
		lt, err := tj.toLeaveType()
		if err != nil {
			return err
		}
		if err := cat.SaveLeaveType(ctx, lt); err != nil {
			return fmt.Errorf("save leave type %s: %w", tj.ID, err)
		}
	}
	for _, pj := range cj.Policies {
		p, err := pj.toPolicy()
		if err != nil {
			return err
		}
		if err := cat.SavePolicy(ctx, p); err != nil {
			return fmt.Errorf("save policy %s: %w", pj.ID, err)
		}
	}
	for _, vj := range cj.Conversions {
		c, err := vj.toConversion()
		if err != nil {
			return err
		}
		if err := cat.SaveConversion(ctx, c); err != nil {
			return fmt.Errorf("save conversion %s->%s: %w", vj.From, vj.To, err)
		}
	}
	return nil
}

// SeedDefaults applies the shipped default catalog.
func SeedDefaults(ctx context.Context, cat Catalog) error {
	cj, err := ParseCatalog(DefaultCatalogJSON)
	if err != nil {
		return err
	}
	return Apply(ctx, cat, cj)
}

// =============================================================================
// DEFAULT CATALOG
// =============================================================================

// DefaultCatalogJSON is the catalog a fresh install starts with:
// paid and unpaid annual leave, maternity/paternity, sick and personal
// leave, and the overflow chains between them. Sick and personal
// requests overflow their per-request cap into paid leave; paid leave
// overflows an exhausted balance into unpaid.
const DefaultCatalogJSON = `{
  "leave_types": [
    {"id": "lt-paid",      "code": "PAID",      "name": "Paid Annual Leave",   "category": "ANNUAL",   "is_active": true},
    {"id": "lt-unpaid",    "code": "UNPAID",    "name": "Unpaid Leave",        "category": "ANNUAL",   "is_active": true},
    {"id": "lt-maternity", "code": "MATERNITY", "name": "Parental Leave",      "category": "PARENTAL", "is_active": true},
    {"id": "lt-sick",      "code": "SICK",      "name": "Sick Leave",          "category": "SOCIAL",   "is_active": true},
    {"id": "lt-marriage",  "code": "MARRIAGE",  "name": "Marriage Leave",      "category": "SOCIAL",   "is_active": true},
    {"id": "lt-personal",  "code": "PERSONAL",  "name": "Personal Leave",      "category": "POLICY",   "is_active": true}
  ],
  "policies": [
    {"id": "pol-paid", "leave_type_id": "lt-paid", "effective_from": "2020-01-01",
     "min_duration_days": 0.5, "auto_calculate_end_date": true},
    {"id": "pol-unpaid", "leave_type_id": "lt-unpaid", "effective_from": "2020-01-01",
     "annual_limit_days": 30},
    {"id": "pol-sick", "leave_type_id": "lt-sick", "effective_from": "2020-01-01",
     "max_per_request_days": 3, "min_duration_days": 0.5, "monthly_limit_days": 5},
    {"id": "pol-marriage", "leave_type_id": "lt-marriage", "effective_from": "2020-01-01",
     "max_per_request_days": 5},
    {"id": "pol-personal", "leave_type_id": "lt-personal", "effective_from": "2020-01-01",
     "max_per_request_days": 2, "min_duration_days": 0.5}
  ],
  "conversions": [
    {"from": "lt-sick",      "to": "lt-paid",   "priority": 1, "reason": "EXCEED_MAX_PER_REQUEST", "is_active": true},
    {"from": "lt-marriage",  "to": "lt-paid",   "priority": 1, "reason": "EXCEED_MAX_PER_REQUEST", "is_active": true},
    {"from": "lt-personal",  "to": "lt-paid",   "priority": 1, "reason": "EXCEED_MAX_PER_REQUEST", "is_active": true},
    {"from": "lt-maternity", "to": "lt-paid",   "priority": 1, "reason": "EXCEED_MAX_PER_REQUEST", "is_active": true},
    {"from": "lt-paid",      "to": "lt-unpaid", "priority": 1, "reason": "EXCEED_BALANCE",         "is_active": true}
  ]
}`
