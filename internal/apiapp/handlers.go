package apiapp

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/security"
)

type addEmployeeRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Department       string `json:"department"`
	Position         string `json:"position"`
	EmploymentStatus string `json:"employment_status"`
	Salary           string `json:"salary"`
	Password         string `json:"password"`
}

// writeStoreError maps store sentinels onto envelope failures.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, errAlreadyProcessed),
		errors.Is(err, errAlreadyCheckedIn),
		errors.Is(err, errAlreadyCheckedOut),
		errors.Is(err, errNotCheckedIn),
		errors.Is(err, errEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		middleware.Logger(r.Context()).WithError(err).Debug("request rejected")
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *server) profile(w http.ResponseWriter, r *http.Request) {
	writeOK(w, currentUser(r), "")
}

func (s *server) listAttendance(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.store.listAttendance(currentUser(r).Email), "")
}

func (s *server) checkIn(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.checkIn(currentUser(r).Email)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, rec, "Checked in at "+rec.CheckInTime[:5])
}

func (s *server) checkOut(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.checkOut(currentUser(r).Email)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, rec, "Checked out at "+rec.CheckOutTime[:5])
}

func (s *server) listLeave(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.store.listLeave(currentUser(r).Email), "")
}

func (s *server) leaveBalance(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.store.leaveBalance(currentUser(r).Email), "")
}

func (s *server) submitLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveSubmission
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.LeaveType) == "" || req.StartDate == "" || req.EndDate == "" {
		writeError(w, http.StatusBadRequest, "leave type, start date and end date are required")
		return
	}
	created, err := s.store.submitLeave(currentUser(r).Email, req)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, created, "Leave request submitted successfully")
}

func (s *server) cancelLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid leave request id")
		return
	}
	if err := s.store.cancelLeave(currentUser(r).Email, id); err != nil {
		writeStoreError(w, r, err, "leave request not found")
		return
	}
	writeOK(w, nil, "Leave request cancelled")
}

func (s *server) listPayroll(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.store.listPayslips(currentUser(r).Email), "")
}

func (s *server) listTraining(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.store.listTraining(currentUser(r).Email), "")
}

func (s *server) listTrips(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.store.listTrips(currentUser(r).Email), "")
}

func (s *server) listEmployees(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listUsers(), "")
}

func (s *server) addEmployee(w http.ResponseWriter, r *http.Request) {
	var req addEmployeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" || normalizeEmail(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "full name and email are required")
		return
	}

	password := req.Password
	if password == "" {
		// Imported employees get an unusable random password until HR resets it.
		generated, err := security.NewToken(18)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to add employee")
			return
		}
		password = generated
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.addUser(user{
		Email:            req.Email,
		Role:             roleEmployee,
		FullName:         req.FullName,
		Department:       strings.TrimSpace(req.Department),
		Position:         strings.TrimSpace(req.Position),
		EmploymentStatus: strings.TrimSpace(req.EmploymentStatus),
	}, hash)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	if req.Salary != "" {
		if created, err = s.store.updateUser(created.Email, employeePatch{Salary: req.Salary}); err != nil {
			writeStoreError(w, r, err, "employee not found")
			return
		}
	}
	writeOK(w, created, "Employee added successfully")
}

func (s *server) updateEmployee(w http.ResponseWriter, r *http.Request) {
	var patch employeePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.store.updateUser(mux.Vars(r)["key"], patch)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, updated, "Employee updated successfully")
}

func (s *server) salaryHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.salaryHistory(mux.Vars(r)["key"])
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, history, "")
}

func (s *server) adminAttendance(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listAttendance(""), "")
}

func (s *server) adminLeave(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listLeave(""), "")
}

func (s *server) decideLeave(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid leave request id")
			return
		}
		decided, err := s.store.decideLeave(id, status, currentUser(r).Email)
		if err != nil {
			writeStoreError(w, r, err, "leave request not found")
			return
		}
		middleware.Logger(r.Context()).WithFields(logrus.Fields{
			"leave_id": id,
			"status":   status,
		}).Info("leave request decided")
		writeOK(w, decided, "Leave request "+status)
	}
}

func (s *server) payrollRuns(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listPayslips(""), "")
}

func (s *server) listBonus(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listBonuses(), "")
}

func (s *server) addBonus(w http.ResponseWriter, r *http.Request) {
	var req bonusSubmission
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.store.addBonus(req)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, created, "Bonus added successfully")
}

func (s *server) adminTraining(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listTraining(""), "")
}

func (s *server) addTraining(w http.ResponseWriter, r *http.Request) {
	var req trainingCourse
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.CourseName) == "" || req.StartDate == "" {
		writeError(w, http.StatusBadRequest, "course name and start date are required")
		return
	}
	created, err := s.store.addTraining(req)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, created, "Training course added successfully")
}

func (s *server) adminTrips(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.store.listTrips(""), "")
}

func (s *server) addTrip(w http.ResponseWriter, r *http.Request) {
	var req trip
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Destination) == "" {
		writeError(w, http.StatusBadRequest, "destination is required")
		return
	}
	created, err := s.store.addTrip(req)
	if err != nil {
		writeStoreError(w, r, err, "employee not found")
		return
	}
	writeOK(w, created, "Trip added successfully")
}
