package policy

import "github.com/davidahmann/spendgate/pkg/types"

// Policy is an organization's spend policy. It is read-only to the engine.
type Policy struct {
	PolicyID      string `yaml:"policy_id" json:"policy_id"`
	PolicyVersion string `yaml:"policy_version" json:"policy_version"`

	Grace               GraceConfig             `yaml:"grace" json:"grace"`
	UnknownVendorStatus VendorStatus            `yaml:"unknown_vendor_status" json:"unknown_vendor_status,omitempty"`
	Vendors             []Vendor                `yaml:"vendors" json:"vendors,omitempty"`
	Modules             map[string]ModulePolicy `yaml:"modules" json:"modules"`
}

type GraceConfig struct {
	// Enabled defaults to true when unset.
	Enabled     *bool `yaml:"enabled" json:"enabled,omitempty"`
	WindowHours int   `yaml:"window_hours" json:"window_hours,omitempty"`
}

type VendorStatus string

const (
	VendorPreferred   VendorStatus = "Preferred"
	VendorAllowlisted VendorStatus = "Allowlisted"
	VendorUnapproved  VendorStatus = "Unapproved"
	VendorDenylisted  VendorStatus = "Denylisted"
)

func (s VendorStatus) Valid() bool {
	switch s {
	case VendorPreferred, VendorAllowlisted, VendorUnapproved, VendorDenylisted:
		return true
	}
	return false
}

// Approved reports whether spend with the vendor needs no vendor-level gating.
func (s VendorStatus) Approved() bool {
	return s == VendorPreferred || s == VendorAllowlisted
}

type Vendor struct {
	ID     string       `yaml:"id" json:"id"`
	Name   string       `yaml:"name" json:"name,omitempty"`
	Status VendorStatus `yaml:"status" json:"status"`
	// Categories served; empty means any category.
	Categories []string `yaml:"categories" json:"categories,omitempty"`
}

func (v Vendor) Serves(category string) bool {
	if len(v.Categories) == 0 {
		return true
	}
	for _, c := range v.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func (v Vendor) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.ID
}

// Thresholds are amounts in minor units. A nil bound is undefined.
type Thresholds struct {
	Approval *int64 `yaml:"approval" json:"approval,omitempty"`
	Block    *int64 `yaml:"block" json:"block,omitempty"`
}

func (t Thresholds) Defined() bool {
	return t.Approval != nil && t.Block != nil
}

func (t Thresholds) Empty() bool {
	return t.Approval == nil && t.Block == nil
}

// Classify returns the severity an amount earns against t, and false when
// the amount is within bounds. Callers check Defined first.
func (t Thresholds) Classify(amount int64) (types.Severity, bool) {
	switch {
	case amount > *t.Block:
		return types.SeverityCritical, true
	case amount > *t.Approval:
		return types.SeverityWarning, true
	default:
		return "", false
	}
}

type ModulePolicy struct {
	Thresholds       Thresholds            `yaml:"thresholds" json:"thresholds"`
	UnapprovedVendor Thresholds            `yaml:"unapproved_vendor" json:"unapproved_vendor"`
	Channels         map[string]Thresholds `yaml:"channels" json:"channels,omitempty"`

	Required        RequiredFields     `yaml:"required" json:"required"`
	SplitAllocation bool               `yaml:"split_allocation" json:"split_allocation,omitempty"`
	Defaults        AllocationDefaults `yaml:"defaults" json:"defaults"`

	RestrictedCategories []string `yaml:"restricted_categories" json:"restricted_categories,omitempty"`

	Advisory Advisory `yaml:"advisory" json:"advisory"`

	UTCOffsetMinutes int          `yaml:"utc_offset_minutes" json:"utc_offset_minutes,omitempty"`
	TimeWindows      []TimeWindow `yaml:"time_windows" json:"time_windows,omitempty"`
	Zones            []string     `yaml:"zones" json:"zones,omitempty"`
	Sites            []string     `yaml:"sites" json:"sites,omitempty"`
	Connectors       []string     `yaml:"connectors" json:"connectors,omitempty"`
}

type RequiredFields struct {
	CostCenter bool `yaml:"cost_center" json:"cost_center,omitempty"`
	ProjectTag bool `yaml:"project_tag" json:"project_tag,omitempty"`
	Purpose    bool `yaml:"purpose" json:"purpose,omitempty"`
}

type AllocationDefaults struct {
	CostCenter string `yaml:"cost_center" json:"cost_center,omitempty"`
	ProjectTag string `yaml:"project_tag" json:"project_tag,omitempty"`
	Purpose    string `yaml:"purpose" json:"purpose,omitempty"`
}

type Advisory struct {
	AttachmentsAbove *int64   `yaml:"attachments_above" json:"attachments_above,omitempty"`
	NotesAbove       *int64   `yaml:"notes_above" json:"notes_above,omitempty"`
	QuoteCategories  []string `yaml:"quote_categories" json:"quote_categories,omitempty"`
	QuoteAbove       *int64   `yaml:"quote_above" json:"quote_above,omitempty"`
}

// TimeWindow allows spend on the listed weekdays between Start and End
// (HH:MM, module-local time). An End before Start wraps past midnight.
type TimeWindow struct {
	Days  []string `yaml:"days" json:"days,omitempty"`
	Start string   `yaml:"start" json:"start"`
	End   string   `yaml:"end" json:"end"`
}

// Module returns the configuration for a module.
func (p Policy) Module(name string) (ModulePolicy, bool) {
	m, ok := p.Modules[name]
	return m, ok
}

func (p Policy) GraceEnabled() bool {
	return p.Grace.Enabled == nil || *p.Grace.Enabled
}

// VendorStatus resolves a vendor's trust tier. Vendors absent from the
// directory get UnknownVendorStatus, or Unapproved when that is unset.
func (p Policy) VendorStatus(id string) VendorStatus {
	if v, ok := p.Vendor(id); ok {
		return v.Status
	}
	if p.UnknownVendorStatus != "" {
		return p.UnknownVendorStatus
	}
	return VendorUnapproved
}

func (p Policy) Vendor(id string) (Vendor, bool) {
	for _, v := range p.Vendors {
		if v.ID == id {
			return v, true
		}
	}
	return Vendor{}, false
}

// BestVendor picks the first Preferred vendor serving category, falling back
// to the first Allowlisted one.
func (p Policy) BestVendor(category string) (Vendor, bool) {
	var fallback *Vendor
	for i := range p.Vendors {
		v := p.Vendors[i]
		if !v.Serves(category) {
			continue
		}
		switch v.Status {
		case VendorPreferred:
			return v, true
		case VendorAllowlisted:
			if fallback == nil {
				fallback = &p.Vendors[i]
			}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Vendor{}, false
}

func (m ModulePolicy) Restricted(category string) bool {
	return contains(m.RestrictedCategories, category)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Int64 is a helper for building thresholds in code.
func Int64(v int64) *int64 {
	return &v
}
