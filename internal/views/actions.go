package views

import "net/http"

type LeaveRequestForm struct {
	LeaveType string `form:"leave_type" json:"leave_type" validate:"required,oneof=annual sick emergency unpaid"`
	StartDate string `form:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `form:"reason" json:"reason,omitempty" validate:"max=500"`
}

type EmployeeForm struct {
	FullName         string `form:"full_name" json:"full_name" validate:"required,max=120"`
	Email            string `form:"email" json:"email" validate:"required,email"`
	Department       string `form:"department" json:"department,omitempty"`
	Position         string `form:"position" json:"position,omitempty"`
	EmploymentStatus string `form:"employment_status" json:"employment_status,omitempty" validate:"omitempty,oneof=active probation resigned terminated"`
	Salary           string `form:"salary" json:"salary,omitempty" validate:"omitempty,numeric"`
	Password         string `form:"password" json:"password,omitempty" validate:"omitempty,min=8"`
}

// EmployeeUpdateForm sends only what was filled in.
type EmployeeUpdateForm struct {
	FullName         string `form:"full_name" json:"full_name,omitempty" validate:"max=120"`
	Department       string `form:"department" json:"department,omitempty"`
	Position         string `form:"position" json:"position,omitempty"`
	EmploymentStatus string `form:"employment_status" json:"employment_status,omitempty" validate:"omitempty,oneof=active probation resigned terminated"`
	Salary           string `form:"salary" json:"salary,omitempty" validate:"omitempty,numeric"`
}

type BonusForm struct {
	EmployeeEmail string `form:"employee_email" json:"employee_email" validate:"required,email"`
	Amount        string `form:"amount" json:"amount" validate:"required,numeric"`
	Reason        string `form:"reason" json:"reason" validate:"required,max=200"`
}

type TrainingForm struct {
	EmployeeEmail string `form:"employee_email" json:"employee_email" validate:"required,email"`
	CourseName    string `form:"course_name" json:"course_name" validate:"required"`
	Provider      string `form:"provider" json:"provider,omitempty"`
	StartDate     string `form:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string `form:"end_date" json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status        string `form:"status" json:"status,omitempty" validate:"omitempty,oneof=planned in-progress completed"`
}

type TripForm struct {
	EmployeeEmail string `form:"employee_email" json:"employee_email" validate:"required,email"`
	Destination   string `form:"destination" json:"destination" validate:"required"`
	Country       string `form:"country" json:"country,omitempty"`
	Purpose       string `form:"purpose" json:"purpose,omitempty"`
	StartDate     string `form:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string `form:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	Status        string `form:"status" json:"status,omitempty" validate:"omitempty,oneof=planned ongoing completed"`
}

func actionSpecs() []ActionSpec {
	return []ActionSpec{
		{
			Name:    "check-in",
			Label:   "check in",
			Method:  http.MethodPost,
			Path:    "/api/attendance/check-in",
			Refresh: []string{Attendance},
		},
		{
			Name:    "check-out",
			Label:   "check out",
			Method:  http.MethodPost,
			Path:    "/api/attendance/check-out",
			Refresh: []string{Attendance},
		},
		{
			Name:    "submit-leave",
			Label:   "submit leave request",
			Method:  http.MethodPost,
			Path:    "/api/leave-requests/submit",
			NewForm: func() any { return &LeaveRequestForm{} },
			Refresh: []string{LeaveRequests, LeaveBalance},
		},
		{
			Name:     "cancel-leave",
			Label:    "cancel leave request",
			Method:   http.MethodDelete,
			Path:     "/api/leave-requests/{key}",
			NeedsKey: true,
			Refresh:  []string{LeaveRequests, LeaveBalance},
		},
		{
			Name:      "approve-leave",
			Label:     "approve leave request",
			Method:    http.MethodPost,
			Path:      "/api/admin/leave-requests/{key}/approve",
			NeedsKey:  true,
			AdminOnly: true,
			Refresh:   []string{AdminLeaveRequests},
		},
		{
			Name:      "reject-leave",
			Label:     "reject leave request",
			Method:    http.MethodPost,
			Path:      "/api/admin/leave-requests/{key}/reject",
			NeedsKey:  true,
			AdminOnly: true,
			Refresh:   []string{AdminLeaveRequests},
		},
		{
			Name:      "add-employee",
			Label:     "add employee",
			Method:    http.MethodPost,
			Path:      "/api/admin/employees/add",
			AdminOnly: true,
			NewForm:   func() any { return &EmployeeForm{} },
			Refresh:   []string{AdminEmployees},
		},
		{
			Name:      "update-employee",
			Label:     "update employee",
			Method:    http.MethodPut,
			Path:      "/api/admin/employees/{key}",
			NeedsKey:  true,
			AdminOnly: true,
			NewForm:   func() any { return &EmployeeUpdateForm{} },
			Refresh:   []string{AdminEmployees},
		},
		{
			Name:      "add-bonus",
			Label:     "add bonus",
			Method:    http.MethodPost,
			Path:      "/api/admin/bonus/add",
			AdminOnly: true,
			NewForm:   func() any { return &BonusForm{} },
			Refresh:   []string{AdminBonus},
		},
		{
			Name:      "add-training",
			Label:     "add training course",
			Method:    http.MethodPost,
			Path:      "/api/admin/training/add",
			AdminOnly: true,
			NewForm:   func() any { return &TrainingForm{} },
			Refresh:   []string{AdminTraining},
		},
		{
			Name:      "add-trip",
			Label:     "add trip",
			Method:    http.MethodPost,
			Path:      "/api/admin/trips/add",
			AdminOnly: true,
			NewForm:   func() any { return &TripForm{} },
			Refresh:   []string{AdminTrips},
		},
	}
}
