package views

import (
	"github.com/phillip-england/hrms/internal/binder"
	"github.com/phillip-england/hrms/internal/table"
)

const (
	Profile            = "profile"
	LeaveBalance       = "leave-balance"
	Attendance         = "attendance"
	LeaveRequests      = "leave-requests"
	Payroll            = "payroll"
	Training           = "training"
	Trips              = "trips"
	AdminEmployees     = "admin-employees"
	AdminAttendance    = "admin-attendance"
	AdminLeaveRequests = "admin-leave-requests"
	AdminPayrollRuns   = "admin-payroll-runs"
	AdminBonus         = "admin-bonus"
	AdminTraining      = "admin-training"
	AdminTrips         = "admin-trips"
	AdminSalaryHistory = "admin-salary-history"
)

func pending(r table.Record) bool {
	return r.Text("status") == "pending"
}

var employeeName = table.FirstOf("employees.full_name", "employee_name", "full_name", "employee_email", "email")

func (c *Catalog) employeeBindings() []binder.Binding {
	return []binder.Binding{
		{
			Name:     Profile,
			Label:    "profile",
			Endpoint: "/api/profile",
			Single:   true,
			Columns: table.Columns{
				{Header: "Name", Accessor: table.Field("full_name")},
				{Header: "Email", Accessor: table.Field("email")},
				{Header: "Department", Accessor: table.Field("department")},
				{Header: "Position", Accessor: table.FirstOf("position", "job_title")},
				{Header: "Status", Accessor: table.Status("employment_status"), Badge: true},
				{Header: "Joined", Accessor: table.Date("joined_at")},
			},
			EmptyMessage: "Profile not available",
			OnLoaded:     profileSummary,
		},
		{
			Name:     LeaveBalance,
			Label:    "leave balance",
			Endpoint: "/api/leave-balance",
			Single:   true,
			Columns: table.Columns{
				{Header: "Annual", Accessor: table.Days("annual")},
				{Header: "Sick", Accessor: table.Days("sick")},
				{Header: "Emergency", Accessor: table.Days("emergency")},
			},
			EmptyMessage: "No leave balance found",
			OnLoaded:     leaveBalanceSummary,
		},
		{
			Name:     Attendance,
			Label:    "attendance",
			Endpoint: "/api/attendance",
			Columns: table.Columns{
				{Header: "Date", Accessor: table.Date("date")},
				{Header: "Check In", Accessor: table.Clock("check_in_time", "check_in")},
				{Header: "Check Out", Accessor: table.Clock("check_out_time", "check_out")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No attendance records found",
			OnLoaded:     c.attendanceSummary,
		},
		{
			Name:     LeaveRequests,
			Label:    "leave requests",
			Endpoint: "/api/leave-requests",
			Columns: table.Columns{
				{Header: "Type", Accessor: table.Field("leave_type")},
				{Header: "Start Date", Accessor: table.Date("start_date")},
				{Header: "End Date", Accessor: table.Date("end_date")},
				{Header: "Days", Accessor: table.Field("days")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
				{Header: "Reason", Accessor: table.Field("reason")},
			},
			Actions: []table.RowAction{
				{Label: "Cancel", Event: "cancel-leave", Key: table.Field("id"), Visible: pending, Confirm: "Cancel this leave request?"},
			},
			EmptyMessage: "No leave requests found",
			OnLoaded:     leaveSummary,
		},
		{
			Name:     Payroll,
			Label:    "payroll",
			Endpoint: "/api/payroll",
			Columns: table.Columns{
				{Header: "Month", Accessor: table.FirstOf("month", "month_year")},
				{Header: "Year", Accessor: table.Field("year")},
				{Header: "Gross", Accessor: table.Money("gross_salary")},
				{Header: "Deductions", Accessor: table.Money("deductions")},
				{Header: "Net", Accessor: table.Money("net_salary")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			Actions: []table.RowAction{
				{Label: "Download", Href: "/downloads/payslips/", Key: table.Field("id")},
			},
			EmptyMessage: "No payslips found",
			OnLoaded:     payrollSummary,
		},
		{
			Name:     Training,
			Label:    "training",
			Endpoint: "/api/training",
			Columns: table.Columns{
				{Header: "Course", Accessor: table.Field("course_name")},
				{Header: "Provider", Accessor: table.Field("provider")},
				{Header: "Start", Accessor: table.Date("start_date")},
				{Header: "End", Accessor: table.Date("end_date")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No training courses found",
			OnLoaded:     trainingSummary,
		},
		{
			Name:     Trips,
			Label:    "trips",
			Endpoint: "/api/trips",
			Columns: table.Columns{
				{Header: "Destination", Accessor: table.Field("destination")},
				{Header: "Purpose", Accessor: table.Field("purpose")},
				{Header: "Start", Accessor: table.Date("start_date")},
				{Header: "End", Accessor: table.Date("end_date")},
				{Header: "Duration", Accessor: table.Days("duration")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No trips found",
			OnLoaded:     tripSummary,
		},
	}
}

func (c *Catalog) adminBindings() []binder.Binding {
	return []binder.Binding{
		{
			Name:     AdminEmployees,
			Label:    "employees",
			Endpoint: "/api/admin/employees",
			Columns: table.Columns{
				{Header: "Name", Accessor: table.Field("full_name")},
				{Header: "Email", Accessor: table.Field("email")},
				{Header: "Department", Accessor: table.Field("department")},
				{Header: "Position", Accessor: table.FirstOf("position", "job_title")},
				{Header: "Status", Accessor: table.Status("employment_status"), Badge: true},
			},
			EmptyMessage: "No employees found",
			OnLoaded:     countSummary("employees", "employee(s)"),
		},
		{
			Name:     AdminAttendance,
			Label:    "attendance records",
			Endpoint: "/api/admin/attendance",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Date", Accessor: table.Date("date")},
				{Header: "Check In", Accessor: table.Clock("check_in_time", "check_in")},
				{Header: "Check Out", Accessor: table.Clock("check_out_time", "check_out")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No attendance records found",
		},
		{
			Name:     AdminLeaveRequests,
			Label:    "leave requests",
			Endpoint: "/api/admin/leave-requests",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Type", Accessor: table.Field("leave_type")},
				{Header: "Start Date", Accessor: table.Date("start_date")},
				{Header: "End Date", Accessor: table.Date("end_date")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			Actions: []table.RowAction{
				{Label: "Approve", Event: "approve-leave", Key: table.Field("id"), Visible: pending},
				{Label: "Reject", Event: "reject-leave", Key: table.Field("id"), Visible: pending, Confirm: "Reject this leave request?"},
			},
			EmptyMessage: "No leave requests found",
			OnLoaded:     leaveSummary,
		},
		{
			Name:     AdminPayrollRuns,
			Label:    "payroll runs",
			Endpoint: "/api/admin/payroll-runs",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Month", Accessor: table.FirstOf("month_year", "month")},
				{Header: "Basic Salary", Accessor: table.Money("basic_salary")},
				{Header: "Net Pay", Accessor: table.Money("net_pay")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No payroll runs found",
		},
		{
			Name:     AdminBonus,
			Label:    "bonus records",
			Endpoint: "/api/admin/bonus",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Amount", Accessor: table.Money("amount")},
				{Header: "Reason", Accessor: table.FirstOf("reason", "description", "bonus_type")},
				{Header: "Created", Accessor: table.Date("created_at")},
			},
			EmptyMessage: "No bonus records found",
		},
		{
			Name:     AdminTraining,
			Label:    "training courses",
			Endpoint: "/api/admin/training",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Course", Accessor: table.Field("course_name")},
				{Header: "Provider", Accessor: table.Field("provider")},
				{Header: "Start", Accessor: table.Date("start_date")},
				{Header: "End", Accessor: table.Date("end_date")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No training courses found",
			OnLoaded:     trainingSummary,
		},
		{
			Name:     AdminTrips,
			Label:    "trips",
			Endpoint: "/api/admin/trips",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Destination", Accessor: table.Field("destination")},
				{Header: "Purpose", Accessor: table.Field("purpose")},
				{Header: "Start", Accessor: table.Date("start_date")},
				{Header: "End", Accessor: table.Date("end_date")},
				{Header: "Status", Accessor: table.Status("status"), Badge: true},
			},
			EmptyMessage: "No trips found",
			OnLoaded:     tripSummary,
		},
		{
			Name:     AdminSalaryHistory,
			Label:    "salary history",
			Endpoint: "/api/admin/salary-history/{key}",
			Columns: table.Columns{
				{Header: "Employee", Accessor: employeeName},
				{Header: "Effective", Accessor: table.Date("effective_date")},
				{Header: "Previous", Accessor: table.Money("previous_salary")},
				{Header: "New", Accessor: table.Money("new_salary")},
			},
			EmptyMessage: "No salary changes recorded",
			OnLoaded:     countSummary("changes", "salary change(s)"),
		},
	}
}
