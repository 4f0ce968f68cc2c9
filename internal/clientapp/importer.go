package clientapp

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/hrms/internal/dispatch"
	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/security"
	"github.com/phillip-england/hrms/internal/views"
)

const importFieldName = "employee_file"

// importColumns maps normalized sheet headers onto employee form fields.
var importColumns = map[string]string{
	"name":              "full_name",
	"full name":         "full_name",
	"full_name":         "full_name",
	"employee":          "full_name",
	"email":             "email",
	"email address":     "email",
	"department":        "department",
	"dept":              "department",
	"position":          "position",
	"job title":         "position",
	"status":            "employment_status",
	"employment status": "employment_status",
	"salary":            "salary",
}

// collectingNotifier records failures instead of showing them, so an import
// ends with one summary notification.
type collectingNotifier struct {
	failures []string
}

func (c *collectingNotifier) Notify(message string, kind notify.Kind) notify.Notification {
	if kind == notify.KindError {
		c.failures = append(c.failures, message)
	}
	return notify.Notification{Message: message, Kind: kind}
}

func (s *server) importEmployees(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	sink := s.notices.For(sess.ID)
	log := middleware.Logger(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		sink.Notify("Unable to read upload", notify.KindError)
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	if !security.TokensEqual(r.PostFormValue(csrfFieldName), sess.CSRF) {
		http.Error(w, "csrf validation failed", http.StatusForbidden)
		return
	}
	file, header, err := r.FormFile(importFieldName)
	if err != nil {
		sink.Notify("Choose a spreadsheet to import", notify.KindError)
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	defer file.Close()

	rows, err := readRowsFromSpreadsheet(file, header.Filename)
	if err == nil {
		var forms []views.EmployeeForm
		forms, err = employeeFormsFromRows(rows)
		if err == nil {
			added, failures := s.importForms(r, forms)
			log.WithField("added", added).WithField("failed", len(failures)).Info("employee import finished")
			message := fmt.Sprintf("Imported %d of %d employee(s)", added, len(forms))
			kind := notify.KindSuccess
			if len(failures) > 0 {
				message += "; first failure: " + failures[0]
				kind = notify.KindError
			}
			sink.Notify(message, kind)
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
	}
	log.WithError(err).Info("employee import rejected")
	sink.Notify("Import failed: "+err.Error(), notify.KindError)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// importForms adds each employee in order and refreshes the employee table
// once at the end.
func (s *server) importForms(r *http.Request, forms []views.EmployeeForm) (int, []string) {
	sess := sessionFromContext(r.Context())
	def, _ := s.catalog.Action("add-employee")
	quiet := &collectingNotifier{}
	added := 0
	for i := range forms {
		res := s.dispatch.Dispatch(r.Context(), sess, dispatch.Action{
			Name:   def.Name,
			Label:  def.Label,
			Method: def.Method,
			Path:   def.ResolvePath(""),
			Body:   &forms[i],
		}, quiet, nil)
		if res.Err == nil {
			added++
		}
	}
	if added > 0 {
		s.refresher(sess, def)(r.Context())
	}
	return added, quiet.failures
}

func employeeFormsFromRows(rows [][]string) ([]views.EmployeeForm, error) {
	if len(rows) < 2 {
		return nil, errors.New("no employee rows found")
	}
	fields := make(map[string]int)
	for idx, h := range rows[0] {
		if field, ok := importColumns[normalizeHeader(h)]; ok {
			if _, seen := fields[field]; !seen {
				fields[field] = idx
			}
		}
	}
	for _, required := range []string{"full_name", "email"} {
		if _, ok := fields[required]; !ok {
			return nil, errors.Errorf("missing %q column", strings.ReplaceAll(required, "_", " "))
		}
	}

	value := func(row []string, field string) string {
		idx, ok := fields[field]
		if !ok {
			return ""
		}
		return cellValue(row, idx)
	}
	var out []views.EmployeeForm
	for _, row := range rows[1:] {
		form := views.EmployeeForm{
			FullName:         value(row, "full_name"),
			Email:            strings.ToLower(value(row, "email")),
			Department:       value(row, "department"),
			Position:         value(row, "position"),
			EmploymentStatus: strings.ToLower(value(row, "employment_status")),
			Salary:           strings.ReplaceAll(value(row, "salary"), ",", ""),
		}
		if form.FullName == "" && form.Email == "" {
			continue
		}
		out = append(out, form)
	}
	if len(out) == 0 {
		return nil, errors.New("no employee rows found")
	}
	return out, nil
}

func readRowsFromSpreadsheet(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, errors.New("no worksheet found")
		}
		rows := workbook.ReadAllCells(100000)
		if len(rows) == 0 {
			return nil, errors.New("worksheet is empty")
		}
		return rows, nil
	case ".html", ".htm":
		return readRowsFromHTML(data)
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, errors.New("no worksheet found")
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, errors.New("worksheet is empty")
		}
		return rows, nil
	}
}

// readRowsFromHTML reads the first table of an exported HTML report.
func readRowsFromHTML(data []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("no table found")
	}
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.Join(strings.Fields(cell.Text()), " "))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	if len(rows) == 0 {
		return nil, errors.New("table is empty")
	}
	return rows, nil
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
