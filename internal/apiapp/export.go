package apiapp

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/hrms/internal/middleware"
)

// csvExport renders one resource as a header row plus data rows. Admins get
// every employee's rows.
type csvExport func(s *server, email string) ([]string, [][]string)

var csvExports = map[string]csvExport{
	"attendance": func(s *server, email string) ([]string, [][]string) {
		rows := [][]string{}
		for _, r := range s.store.listAttendance(email) {
			rows = append(rows, []string{r.EmployeeName, r.Date, r.CheckInTime, r.CheckOutTime, r.Status})
		}
		return []string{"Employee", "Date", "Check In", "Check Out", "Status"}, rows
	},
	"leave-requests": func(s *server, email string) ([]string, [][]string) {
		rows := [][]string{}
		for _, r := range s.store.listLeave(email) {
			rows = append(rows, []string{r.EmployeeName, r.LeaveType, r.StartDate, r.EndDate, strconv.Itoa(r.Days), r.Status, r.Reason})
		}
		return []string{"Employee", "Type", "Start Date", "End Date", "Days", "Status", "Reason"}, rows
	},
	"payroll": func(s *server, email string) ([]string, [][]string) {
		rows := [][]string{}
		for _, r := range s.store.listPayslips(email) {
			rows = append(rows, []string{r.EmployeeName, r.Month, strconv.Itoa(r.Year), r.Gross.StringFixed(2), r.Deductions.StringFixed(2), r.Net.StringFixed(2), r.Status})
		}
		return []string{"Employee", "Month", "Year", "Gross", "Deductions", "Net", "Status"}, rows
	},
	"training": func(s *server, email string) ([]string, [][]string) {
		rows := [][]string{}
		for _, r := range s.store.listTraining(email) {
			rows = append(rows, []string{r.EmployeeName, r.CourseName, r.Provider, r.StartDate, r.EndDate, r.Status})
		}
		return []string{"Employee", "Course", "Provider", "Start", "End", "Status"}, rows
	},
	"trips": func(s *server, email string) ([]string, [][]string) {
		rows := [][]string{}
		for _, r := range s.store.listTrips(email) {
			rows = append(rows, []string{r.EmployeeName, r.Destination, r.Purpose, r.StartDate, r.EndDate, strconv.Itoa(r.Duration), r.Status})
		}
		return []string{"Employee", "Destination", "Purpose", "Start", "End", "Days", "Status"}, rows
	},
}

func (s *server) exportCSV(w http.ResponseWriter, r *http.Request) {
	resource := mux.Vars(r)["resource"]
	export, ok := csvExports[resource]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown export "+resource)
		return
	}
	u := currentUser(r)
	email := u.Email
	if u.Role == roleAdmin {
		email = ""
	}
	header, rows := export(s, email)

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write(header)
	_ = writer.WriteAll(rows)
	if err := writer.Error(); err != nil {
		middleware.Logger(r.Context()).WithError(err).Error("write csv export")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, resource))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) downloadPayslip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payslip id")
		return
	}
	slip, err := s.store.payslip(id)
	u := currentUser(r)
	if err != nil || (u.Role != roleAdmin && slip.Email != u.Email) {
		writeError(w, http.StatusNotFound, "payslip not found")
		return
	}

	data, err := payslipWorkbook(slip)
	if err != nil {
		middleware.Logger(r.Context()).WithError(err).Error("render payslip")
		writeError(w, http.StatusInternalServerError, "unable to generate payslip")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payslip-%s-%d.xlsx"`, slip.MonthYear, slip.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func payslipWorkbook(slip payslip) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Payslip", slip.MonthYear},
		{"Employee", slip.EmployeeName},
		{"Email", slip.Email},
		{"Period", fmt.Sprintf("%s %d", slip.Month, slip.Year)},
		{},
		{"Gross salary", slip.Gross.InexactFloat64()},
		{"Deductions", slip.Deductions.InexactFloat64()},
		{"Net salary", slip.Net.InexactFloat64()},
		{"Status", slip.Status},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
