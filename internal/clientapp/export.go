package clientapp

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/binder"
	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/table"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportView re-binds a view and writes the same rows the table shows as a
// spreadsheet.
func (s *server) exportView(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	b, _, ok := s.resolveBinding(w, r)
	if !ok {
		return
	}
	out := s.binder.Bind(r.Context(), sess, b, s.surfaces.For(sess.ID), s.notices.For(sess.ID))
	if s.expireIfUnauthorized(w, r, out.Err) {
		return
	}
	// A stale completion lost the race for the surface, but its records are
	// still a whole response and export as they are.
	if out.Err != nil {
		http.Redirect(w, r, homeFor(sess), http.StatusSeeOther)
		return
	}

	data, err := viewWorkbook(b, out.Records)
	if err != nil {
		middleware.Logger(r.Context()).WithError(err).Error("build export workbook")
		s.notices.For(sess.ID).Notify("Unable to export "+b.Label, notify.KindError)
		http.Redirect(w, r, homeFor(sess), http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, b.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func viewWorkbook(b binder.Binding, records []table.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if b.Label != "" {
		if err := f.SetSheetName(sheet, sheetTitle(b.Label)); err != nil {
			return nil, err
		}
		sheet = sheetTitle(b.Label)
	}

	rows := append([][]string{b.Columns.Headers()}, b.Columns.Rows(records)...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetTitle keeps within the 31 character sheet name limit.
func sheetTitle(label string) string {
	title := titleCase(label)
	if len(title) > 31 {
		title = title[:31]
	}
	return title
}

func (s *server) downloadPayslip(w http.ResponseWriter, r *http.Request) {
	s.proxyDownload(w, r, "/api/payroll/payslip/"+mux.Vars(r)["id"]+"/download", "payslip")
}

func (s *server) downloadCSV(w http.ResponseWriter, r *http.Request) {
	resource := mux.Vars(r)["resource"]
	if !csvResources[resource] {
		http.NotFound(w, r)
		return
	}
	s.proxyDownload(w, r, "/api/"+resource+"/export/csv", resource+" export")
}

// proxyDownload streams a backend file to the browser. Failures become a
// notification and a redirect back to the page.
func (s *server) proxyDownload(w http.ResponseWriter, r *http.Request, path, what string) {
	sess := sessionFromContext(r.Context())
	dl, err := s.api.Download(r.Context(), sess, path)
	if err != nil {
		if s.expireIfUnauthorized(w, r, err) {
			return
		}
		middleware.Logger(r.Context()).WithError(err).WithField("path", path).Warn("download failed")
		s.notices.For(sess.ID).Notify("Unable to download "+what+": "+apiclient.UserMessage(err), notify.KindError)
		http.Redirect(w, r, homeFor(sess), http.StatusSeeOther)
		return
	}
	defer dl.Body.Close()

	if dl.ContentType != "" {
		w.Header().Set("Content-Type", dl.ContentType)
	}
	if dl.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, dl.Filename))
	}
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	if _, err := io.Copy(w, dl.Body); err != nil {
		middleware.Logger(r.Context()).WithError(err).Warn("stream download")
	}
}
