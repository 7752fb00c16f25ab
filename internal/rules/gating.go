package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidahmann/spendgate/internal/policy"
	"github.com/davidahmann/spendgate/pkg/types"
)

func hasTimeWindows(in Input) bool {
	return len(in.Module.TimeWindows) > 0
}

// LocalTime is now shifted by the module's UTC offset.
func LocalTime(now time.Time, m policy.ModulePolicy) time.Time {
	return now.In(time.FixedZone("module", m.UTCOffsetMinutes*60))
}

func checkTimeWindow(in Input) []types.Reason {
	local := LocalTime(in.Tx.Now(), in.Module)
	for _, w := range in.Module.TimeWindows {
		if w.Contains(local) {
			return nil
		}
	}
	windows := make([]string, 0, len(in.Module.TimeWindows))
	for _, w := range in.Module.TimeWindows {
		windows = append(windows, w.Start+"-"+w.End)
	}
	return []types.Reason{{
		Code:     types.CodeContext,
		Title:    "Outside allowed hours",
		Detail:   fmt.Sprintf("%s is outside the allowed windows (%s).", local.Format("Mon 15:04"), strings.Join(windows, ", ")),
		Severity: types.SeverityCritical,
		Subject:  types.SubjectField + "now_ms",
	}}
}

// checkListed gates a context value against an allowlist. An empty
// allowlist disables the check; an empty value is outside it.
func checkListed(name string, list func(policy.ModulePolicy) []string, value func(types.TransactionContext) string) func(Input) []types.Reason {
	return func(in Input) []types.Reason {
		allowed := list(in.Module)
		if len(allowed) == 0 {
			return nil
		}
		v := value(in.Tx)
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		detail := fmt.Sprintf("No %s was provided; corporate spend is limited to %s.", name, strings.Join(allowed, ", "))
		if v != "" {
			detail = fmt.Sprintf("%s %q is not in the allowed list (%s).", strings.ToUpper(name[:1])+name[1:], v, strings.Join(allowed, ", "))
		}
		return []types.Reason{{
			Code:     types.CodeContext,
			Title:    "Outside allowed " + name,
			Detail:   detail,
			Severity: types.SeverityCritical,
			Subject:  types.SubjectField + name,
		}}
	}
}
