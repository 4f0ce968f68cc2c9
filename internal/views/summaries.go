package views

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/table"
)

const recentAttendance = 5

func (c *Catalog) attendanceSummary(_ *session.Session, records []table.Record) map[string]string {
	recent := len(records)
	if recent > recentAttendance {
		recent = recentAttendance
	}
	summary := map[string]string{
		"summary": fmt.Sprintf("%d recent record(s)", recent),
	}
	if len(records) == 0 {
		return summary
	}
	today := c.clock.Now().Format("2006-01-02")
	if first := records[0]; table.Date("date")(first) == today {
		summary["today_check_in"] = table.Clock("check_in_time", "check_in")(first)
		summary["today_check_out"] = table.Clock("check_out_time", "check_out")(first)
		summary["today_hours"] = table.Field("hours")(first)
	}
	return summary
}

func profileSummary(_ *session.Session, records []table.Record) map[string]string {
	if len(records) == 0 {
		return map[string]string{}
	}
	return map[string]string{
		"department": table.Field("department")(records[0]),
		"position":   table.FirstOf("position", "job_title")(records[0]),
	}
}

// leaveBalanceSummary reads zero for a missing balance so the cards never
// show a stale figure.
func leaveBalanceSummary(_ *session.Session, records []table.Record) map[string]string {
	summary := map[string]string{"annual": "0", "sick": "0", "emergency": "0"}
	if len(records) == 0 {
		return summary
	}
	for key := range summary {
		if v := records[0].Text(key); v != "" {
			summary[key] = v
		}
	}
	summary["summary"] = fmt.Sprintf("%s annual day(s) left", summary["annual"])
	return summary
}

func leaveSummary(_ *session.Session, records []table.Record) map[string]string {
	count := 0
	for _, r := range records {
		if pending(r) {
			count++
		}
	}
	return map[string]string{
		"summary": fmt.Sprintf("%d pending request(s), %d total", count, len(records)),
		"pending": strconv.Itoa(count),
	}
}

func payrollSummary(_ *session.Session, records []table.Record) map[string]string {
	net := decimal.Zero
	for _, r := range records {
		if amount, err := decimal.NewFromString(r.Text("net_salary")); err == nil {
			net = net.Add(amount)
		}
	}
	return map[string]string{
		"summary":   fmt.Sprintf("%d payslip(s)", len(records)),
		"net_total": table.FormatMoney(net),
	}
}

func trainingSummary(_ *session.Session, records []table.Record) map[string]string {
	counts := map[string]int{}
	for _, r := range records {
		counts[table.Status("status")(r)]++
	}
	return map[string]string{
		"summary":     fmt.Sprintf("%d completed, %d in progress, %d planned", counts["completed"], counts["in-progress"], counts["planned"]),
		"completed":   strconv.Itoa(counts["completed"]),
		"in_progress": strconv.Itoa(counts["in-progress"]),
		"planned":     strconv.Itoa(counts["planned"]),
	}
}

func tripSummary(_ *session.Session, records []table.Record) map[string]string {
	countries := map[string]struct{}{}
	days := decimal.Zero
	for _, r := range records {
		if country := r.Text("country"); country != "" {
			countries[country] = struct{}{}
		}
		if d, err := decimal.NewFromString(r.Text("duration")); err == nil {
			days = days.Add(d)
		}
	}
	return map[string]string{
		"summary":   fmt.Sprintf("%d trip(s), %d countries, %s days abroad", len(records), len(countries), days.String()),
		"total":     strconv.Itoa(len(records)),
		"countries": strconv.Itoa(len(countries)),
		"days":      days.String(),
	}
}

func countSummary(noun, unit string) func(*session.Session, []table.Record) map[string]string {
	return func(_ *session.Session, records []table.Record) map[string]string {
		return map[string]string{
			"summary": fmt.Sprintf("%d %s", len(records), unit),
			noun:      strconv.Itoa(len(records)),
		}
	}
}
