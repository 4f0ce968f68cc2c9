package apiapp

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/phillip-england/hrms/internal/security"
)

const (
	roleAdmin    = "admin"
	roleEmployee = "employee"
)

func (s *server) ensureAdminUser(email, password string) error {
	if _, ok := s.store.userByEmail(email); ok {
		return nil
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	_, err = s.store.addUser(user{
		Email:      email,
		Role:       roleAdmin,
		FullName:   "HR Administrator",
		Department: "Human Resources",
		Position:   "HR Manager",
	}, hash)
	return err
}

// seedDemo loads one employee with a little history in every table so a
// fresh portal has something to show.
func (s *server) seedDemo(email, password string) error {
	hash, err := security.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash demo password")
	}
	if _, err := s.store.addUser(user{
		Email:      email,
		Role:       roleEmployee,
		FullName:   "Aisyah Rahman",
		Department: "Engineering",
		Position:   "Software Engineer",
		Salary:     decimal.RequireFromString("6500.00"),
	}, hash); err != nil {
		return err
	}
	email = normalizeEmail(email)

	now := s.store.clock.Now()
	for i := 3; i >= 1; i-- {
		month := now.AddDate(0, -i, 0)
		s.store.addPayslip(email, month.Year(), month.Month(),
			decimal.RequireFromString("6500.00"), decimal.RequireFromString("1042.75"), "paid")
	}

	s.store.mu.Lock()
	for i := 5; i >= 1; i-- {
		day := now.AddDate(0, 0, -i)
		s.store.attendance = append([]attendanceRecord{{
			ID:           s.store.nextIDLocked(),
			Email:        email,
			EmployeeName: "Aisyah Rahman",
			Date:         day.Format(dateLayout),
			CheckInTime:  fmt.Sprintf("08:5%d:00", i),
			CheckOutTime: fmt.Sprintf("18:0%d:00", i),
			Status:       "present",
		}}, s.store.attendance...)
	}
	s.store.mu.Unlock()

	start := now.AddDate(0, 0, 14).Format(dateLayout)
	end := now.AddDate(0, 0, 16).Format(dateLayout)
	if _, err := s.store.submitLeave(email, leaveSubmission{LeaveType: "annual", StartDate: start, EndDate: end, Reason: "Family trip"}); err != nil {
		return err
	}
	if _, err := s.store.addTraining(trainingCourse{
		Email:      email,
		CourseName: "Go for Backend Engineers",
		Provider:   "Internal Academy",
		StartDate:  now.AddDate(0, -2, 0).Format(dateLayout),
		EndDate:    now.AddDate(0, -2, 2).Format(dateLayout),
		Status:     "completed",
	}); err != nil {
		return err
	}
	_, err = s.store.addTrip(trip{
		Email:       email,
		Destination: "Singapore",
		Country:     "Singapore",
		Purpose:     "Client workshop",
		StartDate:   now.AddDate(0, -1, 0).Format(dateLayout),
		EndDate:     now.AddDate(0, -1, 0).Add(48 * time.Hour).Format(dateLayout),
		Status:      "completed",
	})
	return err
}
