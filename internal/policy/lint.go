package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Problem struct {
	Module  string `json:"module,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Module == "" {
		return p.Field + ": " + p.Message
	}
	return p.Module + "." + p.Field + ": " + p.Message
}

// Lint reports every configuration problem in p, modules in name order.
func Lint(p Policy) []Problem {
	problems := directoryProblems(p)
	if len(p.Modules) == 0 {
		problems = append(problems, Problem{Field: "modules", Message: "no modules configured"})
	}

	names := make([]string, 0, len(p.Modules))
	for name := range p.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	unapproved := unapprovedReachable(p)
	for _, name := range names {
		m := p.Modules[name]
		problems = append(problems, moduleProblems(name, m)...)
		if unapproved && m.UnapprovedVendor.Empty() {
			problems = append(problems, Problem{Module: name, Field: "unapproved_vendor",
				Message: "thresholds are required; spend with unapproved or unknown vendors is blocked as a misconfiguration"})
		}
	}
	return problems
}

// unapprovedReachable reports whether any vendor can resolve to Unapproved.
// Evaluation only fails on a missing unapproved_vendor block once such a
// vendor is in the basket, so this is a lint finding rather than a module
// problem.
func unapprovedReachable(p Policy) bool {
	if p.UnknownVendorStatus == "" || p.UnknownVendorStatus == VendorUnapproved {
		return true
	}
	for _, v := range p.Vendors {
		if v.Status == VendorUnapproved {
			return true
		}
	}
	return false
}

// ModuleProblems reports the problems that make a module unusable for
// evaluation: the module itself plus the shared vendor directory.
func ModuleProblems(p Policy, module string) []Problem {
	problems := directoryProblems(p)
	m, ok := p.Module(module)
	if !ok {
		return append(problems, Problem{Module: module, Field: "modules", Message: "module is not configured"})
	}
	return append(problems, moduleProblems(module, m)...)
}

func directoryProblems(p Policy) []Problem {
	var problems []Problem
	if p.UnknownVendorStatus != "" && !p.UnknownVendorStatus.Valid() {
		problems = append(problems, Problem{Field: "unknown_vendor_status", Message: fmt.Sprintf("invalid status %q", p.UnknownVendorStatus)})
	}
	if p.Grace.WindowHours < 0 {
		problems = append(problems, Problem{Field: "grace.window_hours", Message: "must not be negative"})
	}
	seen := map[string]bool{}
	for i, v := range p.Vendors {
		field := fmt.Sprintf("vendors[%d]", i)
		if v.ID == "" {
			problems = append(problems, Problem{Field: field, Message: "id is required"})
			continue
		}
		if seen[v.ID] {
			problems = append(problems, Problem{Field: field, Message: fmt.Sprintf("duplicate vendor id %q", v.ID)})
		}
		seen[v.ID] = true
		if !v.Status.Valid() {
			problems = append(problems, Problem{Field: field, Message: fmt.Sprintf("invalid status %q", v.Status)})
		}
	}
	return problems
}

func moduleProblems(name string, m ModulePolicy) []Problem {
	var problems []Problem
	add := func(field, msg string) {
		problems = append(problems, Problem{Module: name, Field: field, Message: msg})
	}

	if !m.Thresholds.Defined() {
		add("thresholds", "approval and block amounts are required")
	} else if msg := thresholdOrder(m.Thresholds); msg != "" {
		add("thresholds", msg)
	}

	if !m.UnapprovedVendor.Empty() {
		if !m.UnapprovedVendor.Defined() {
			add("unapproved_vendor", "approval and block amounts must be set together")
		} else if msg := thresholdOrder(m.UnapprovedVendor); msg != "" {
			add("unapproved_vendor", msg)
		}
	}

	channels := make([]string, 0, len(m.Channels))
	for ch := range m.Channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		t := m.Channels[ch]
		if !t.Defined() {
			add("channels."+ch, "approval and block amounts are required")
		} else if msg := thresholdOrder(t); msg != "" {
			add("channels."+ch, msg)
		}
	}

	if m.UTCOffsetMinutes < -14*60 || m.UTCOffsetMinutes > 14*60 {
		add("utc_offset_minutes", "must be within ±840")
	}
	for i, w := range m.TimeWindows {
		if _, _, err := w.Bounds(); err != nil {
			add(fmt.Sprintf("time_windows[%d]", i), err.Error())
		}
		for _, d := range w.Days {
			if _, ok := parseWeekday(d); !ok {
				add(fmt.Sprintf("time_windows[%d]", i), fmt.Sprintf("unknown day %q", d))
			}
		}
	}

	return problems
}

func thresholdOrder(t Thresholds) string {
	if *t.Approval < 0 || *t.Block < 0 {
		return "amounts must not be negative"
	}
	if *t.Approval > *t.Block {
		return "approval amount exceeds block amount"
	}
	return ""
}

// Bounds parses Start and End into minutes after midnight.
func (w TimeWindow) Bounds() (start int, end int, err error) {
	start, err = parseClock(w.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	end, err = parseClock(w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

// Contains reports whether local falls inside the window.
func (w TimeWindow) Contains(local time.Time) bool {
	start, end, err := w.Bounds()
	if err != nil {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	day := local.Weekday()

	if start <= end {
		return w.allowsDay(day) && minute >= start && minute < end
	}
	// Wraps midnight: the late segment belongs to day, the early one to the day before.
	if minute >= start {
		return w.allowsDay(day)
	}
	if minute < end {
		return w.allowsDay((day + 6) % 7)
	}
	return false
}

func (w TimeWindow) allowsDay(day time.Weekday) bool {
	if len(w.Days) == 0 {
		return true
	}
	for _, d := range w.Days {
		if wd, ok := parseWeekday(d); ok && wd == day {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday":
		return time.Sunday, true
	case "mon", "monday":
		return time.Monday, true
	case "tue", "tuesday":
		return time.Tuesday, true
	case "wed", "wednesday":
		return time.Wednesday, true
	case "thu", "thursday":
		return time.Thursday, true
	case "fri", "friday":
		return time.Friday, true
	case "sat", "saturday":
		return time.Saturday, true
	}
	return 0, false
}
