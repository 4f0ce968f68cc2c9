package clientapp

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/hrms/internal/apiapp"
	"github.com/phillip-england/hrms/internal/logging"
)

const (
	adminEmail    = "admin@hrms.local"
	adminPassword = "admin-password"
	demoEmail     = "employee@hrms.local"
	demoPassword  = "employee123"
)

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

type page struct {
	status int
	path   string
	header http.Header
	body   []byte
	doc    *goquery.Document
}

func newBrowser(t *testing.T) *browser {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 6, 8, 30, 0, 0, time.UTC))

	api, err := apiapp.NewHandler(apiapp.Config{
		AdminUsername: adminEmail,
		AdminPassword: adminPassword,
		SessionTTL:    time.Hour,
		SeedDemo:      true,
		DemoUsername:  demoEmail,
		DemoPassword:  demoPassword,
	}, logging.Discard(), clock)
	require.NoError(t, err)
	backend := httptest.NewServer(api)
	t.Cleanup(backend.Close)

	portal := httptest.NewServer(NewHandler(Config{
		APIBaseURL: backend.URL,
		APITimeout: 5 * time.Second,
		NotifyTTL:  5 * time.Second,
		SessionTTL: time.Hour,
	}, Options{Logger: logging.Discard(), Clock: clock}))
	t.Cleanup(portal.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: portal.URL, client: &http.Client{Jar: jar}}
}

func (b *browser) read(resp *http.Response) page {
	b.t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	require.NoError(b.t, err)
	return page{status: resp.StatusCode, path: resp.Request.URL.RequestURI(), header: resp.Header, body: body, doc: doc}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return b.read(resp)
}

func (b *browser) post(path string, values url.Values) page {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, values)
	require.NoError(b.t, err)
	return b.read(resp)
}

func (b *browser) login(username, password string) page {
	b.t.Helper()
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func csrfOf(p page) string {
	token, _ := p.doc.Find(`input[name="csrf"]`).First().Attr("value")
	return token
}

func notices(p page) []string {
	var out []string
	p.doc.Find("#notifications .notice span").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func bodyRows(p page, panel string) *goquery.Selection {
	return p.doc.Find("#panel-" + panel + " tbody tr").Not(".empty-row")
}

func TestEmployeeLoginRendersDashboard(t *testing.T) {
	b := newBrowser(t)
	p := b.login(demoEmail, demoPassword)

	require.Equal(t, http.StatusOK, p.status)
	require.Equal(t, "/dashboard", p.path)
	require.Contains(t, p.doc.Find("h1").First().Text(), "Aisyah Rahman")
	require.Equal(t, 7, p.doc.Find("section.panel").Length())
	require.Equal(t, 5, bodyRows(p, "attendance").Length())
	require.Equal(t, 1, bodyRows(p, "profile").Length())
	require.Equal(t, "Software Engineer", strings.TrimSpace(p.doc.Find("#profile-card strong").Text()))
	require.Equal(t, "11", strings.TrimSpace(p.doc.Find("#annual-balance").Text()))
	require.Equal(t, 3, bodyRows(p, "payroll").Length())
	require.NotEmpty(t, csrfOf(p))

	href, ok := p.doc.Find("#panel-payroll td.row-actions a").First().Attr("href")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(href, "/downloads/payslips/"))

	cancel := p.doc.Find("#panel-leave-requests td.row-actions form")
	require.Equal(t, 1, cancel.Length())
	confirm, _ := cancel.Attr("data-confirm")
	require.Equal(t, "Cancel this leave request?", confirm)
}

func TestLoginFailureShowsBackendMessage(t *testing.T) {
	b := newBrowser(t)
	p := b.login(demoEmail, "wrong-password")

	require.True(t, strings.HasPrefix(p.path, "/login"))
	require.Equal(t, "Invalid username or password", strings.TrimSpace(p.doc.Find(".alert-error").Text()))

	p = b.login("", "")
	require.Equal(t, "Please enter both username and password", strings.TrimSpace(p.doc.Find(".alert-error").Text()))
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	b := newBrowser(t)
	for _, path := range []string{"/dashboard", "/admin", "/views/attendance", "/notifications"} {
		p := b.get(path)
		require.Equal(t, "/login", p.path, path)
	}
}

func TestEmployeeCannotReachAdminViews(t *testing.T) {
	b := newBrowser(t)
	p := b.login(demoEmail, demoPassword)
	token := csrfOf(p)

	require.Equal(t, http.StatusForbidden, b.get("/admin").status)
	require.Equal(t, http.StatusForbidden, b.get("/views/admin-employees").status)
	require.Equal(t, http.StatusForbidden, b.post("/actions/approve-leave/1", url.Values{"csrf": {token}}).status)
}

func TestActionRequiresCSRFToken(t *testing.T) {
	b := newBrowser(t)
	b.login(demoEmail, demoPassword)

	p := b.post("/actions/check-in", url.Values{"csrf": {"forged"}})
	require.Equal(t, http.StatusForbidden, p.status)

	p = b.get("/dashboard")
	require.Equal(t, 5, bodyRows(p, "attendance").Length())
}

func TestUnknownEventIsNotFound(t *testing.T) {
	b := newBrowser(t)
	token := csrfOf(b.login(demoEmail, demoPassword))

	p := b.post("/actions/launch-rockets", url.Values{"csrf": {token}})
	require.Equal(t, http.StatusNotFound, p.status)
}

func TestCheckInRefreshesAttendance(t *testing.T) {
	b := newBrowser(t)
	token := csrfOf(b.login(demoEmail, demoPassword))

	p := b.post("/actions/check-in", url.Values{"csrf": {token}, "return_to": {"/dashboard"}})
	require.Equal(t, "/dashboard", p.path)
	require.Contains(t, notices(p), "Checked in at 08:30")
	require.Equal(t, 6, bodyRows(p, "attendance").Length())
	require.NotEqual(t, "-", strings.TrimSpace(p.doc.Find("#today-check-in").Text()))

	p = b.post("/actions/check-in", url.Values{"csrf": {token}, "return_to": {"/dashboard"}})
	found := false
	for _, n := range notices(p) {
		if strings.HasPrefix(n, "Failed to check in:") {
			found = true
		}
	}
	require.True(t, found, "notices: %v", notices(p))
}

func TestSubmitLeaveValidatesBeforeSending(t *testing.T) {
	b := newBrowser(t)
	token := csrfOf(b.login(demoEmail, demoPassword))

	p := b.post("/actions/submit-leave", url.Values{
		"csrf":       {token},
		"leave_type": {"annual"},
		"end_date":   {"2025-02-03"},
	})
	require.Equal(t, "/dashboard", p.path)
	require.Len(t, notices(p), 1)
	require.True(t, strings.HasPrefix(notices(p)[0], "Failed to submit leave request:"))
	require.Equal(t, 1, bodyRows(p, "leave-requests").Length())

	p = b.post("/actions/submit-leave", url.Values{
		"csrf":       {token},
		"leave_type": {"sick"},
		"start_date": {"2025-02-03"},
		"end_date":   {"2025-02-04"},
		"reason":     {"flu"},
	})
	require.Contains(t, notices(p), "Leave request submitted successfully")
	require.Equal(t, 2, bodyRows(p, "leave-requests").Length())
}

func TestApproveLeaveTwiceReportsAlreadyProcessed(t *testing.T) {
	b := newBrowser(t)
	p := b.login(adminEmail, adminPassword)
	require.Equal(t, "/admin", p.path)
	token := csrfOf(p)

	action, ok := p.doc.Find(`#panel-admin-leave-requests form[action^="/actions/approve-leave/"]`).First().Attr("action")
	require.True(t, ok)

	p = b.post(action, url.Values{"csrf": {token}})
	require.Equal(t, "/admin", p.path)
	require.Contains(t, notices(p), "Leave request approved")
	require.Zero(t, p.doc.Find(`#panel-admin-leave-requests form[action^="/actions/approve-leave/"]`).Length())

	p = b.post(action, url.Values{"csrf": {token}})
	require.Contains(t, notices(p), "Failed to approve leave request: already processed")
}

func TestDismissNotification(t *testing.T) {
	b := newBrowser(t)
	token := csrfOf(b.login(demoEmail, demoPassword))
	p := b.post("/actions/check-in", url.Values{"csrf": {token}})
	id, ok := p.doc.Find("#notifications [data-notice-id]").First().Attr("data-notice-id")
	require.True(t, ok)

	req, err := http.NewRequest(http.MethodPost, b.base+"/notifications/"+id+"/dismiss", strings.NewReader(url.Values{"csrf": {token}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "fetch")
	resp, err := b.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	p = b.get("/notifications")
	require.Empty(t, notices(p))
}

func TestViewFragmentRendersSinglePanel(t *testing.T) {
	b := newBrowser(t)
	b.login(demoEmail, demoPassword)

	p := b.get("/views/trips")
	require.Equal(t, http.StatusOK, p.status)
	require.Equal(t, 1, p.doc.Find("section.panel").Length())
	require.Equal(t, 1, bodyRows(p, "trips").Length())
	require.Equal(t, http.StatusNotFound, b.get("/views/nope").status)
}

func TestExportViewWorkbook(t *testing.T) {
	b := newBrowser(t)
	b.login(demoEmail, demoPassword)

	p := b.get("/views/attendance/export.xlsx")
	require.Equal(t, http.StatusOK, p.status)
	require.Equal(t, xlsxContentType, p.header.Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(p.body))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 6)
	require.Equal(t, []string{"Date", "Check In", "Check Out", "Status"}, rows[0])
}

func TestDownloadsProxyBackendFiles(t *testing.T) {
	b := newBrowser(t)
	p := b.login(demoEmail, demoPassword)
	href, _ := p.doc.Find("#panel-payroll td.row-actions a").First().Attr("href")

	slip := b.get(href)
	require.Equal(t, http.StatusOK, slip.status)
	require.Equal(t, xlsxContentType, slip.header.Get("Content-Type"))
	require.Contains(t, slip.header.Get("Content-Disposition"), "payslip-")

	csv := b.get("/downloads/attendance/csv")
	require.Equal(t, http.StatusOK, csv.status)
	require.True(t, strings.HasPrefix(string(csv.body), "Employee,Date,Check In,Check Out,Status"))

	require.Equal(t, http.StatusNotFound, b.get("/downloads/admin-employees/csv").status)

	missing := b.get("/downloads/payslips/999")
	require.Equal(t, "/dashboard", missing.path)
	require.Contains(t, notices(missing), "Unable to download payslip: payslip not found")
}

func TestImportEmployeesFromHTMLTable(t *testing.T) {
	b := newBrowser(t)
	p := b.login(adminEmail, adminPassword)
	token := csrfOf(p)
	before := bodyRows(p, "admin-employees").Length()

	report := `<html><body><table>
<tr><th>Full Name</th><th>Email</th><th>Department</th><th>Salary</th></tr>
<tr><td>Farah Lim</td><td>Farah@HRMS.local</td><td>Finance</td><td>5,200</td></tr>
<tr><td>Duplicate</td><td>` + demoEmail + `</td><td>Ops</td><td>4000</td></tr>
</table></body></html>`

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("csrf", token))
	part, err := mw.CreateFormFile(importFieldName, "staff.html")
	require.NoError(t, err)
	_, err = part.Write([]byte(report))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := b.client.Post(b.base+"/admin/employees/import", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	p = b.read(resp)

	require.Equal(t, "/admin", p.path)
	require.Len(t, notices(p), 1)
	require.True(t, strings.HasPrefix(notices(p)[0], "Imported 1 of 2 employee(s); first failure:"), notices(p)[0])
	require.Contains(t, notices(p)[0], "email already registered")
	require.Equal(t, before+1, bodyRows(p, "admin-employees").Length())
}

func TestLogoutEndsSession(t *testing.T) {
	b := newBrowser(t)
	token := csrfOf(b.login(demoEmail, demoPassword))

	require.Equal(t, http.StatusForbidden, b.post("/logout", url.Values{"csrf": {"nope"}}).status)

	p := b.post("/logout", url.Values{"csrf": {token}})
	require.True(t, strings.HasPrefix(p.path, "/login"))
	require.Equal(t, "Signed out", strings.TrimSpace(p.doc.Find(".alert-info").Text()))
	require.Equal(t, "/login", b.get("/dashboard").path)
}

func TestHealthzAndMetrics(t *testing.T) {
	b := newBrowser(t)
	health := b.get("/healthz")
	require.Equal(t, http.StatusOK, health.status)
	require.JSONEq(t, `{"status":"ok"}`, string(health.body))

	b.get("/login")
	metrics := b.get("/metrics")
	require.Equal(t, http.StatusOK, metrics.status)
	require.Contains(t, string(metrics.body), "hrms_http_requests_total")
}

func TestSecurityHeadersOnPages(t *testing.T) {
	b := newBrowser(t)
	p := b.get("/login")
	require.Contains(t, p.header.Get("Content-Security-Policy"), "script-src 'self'")
	require.Zero(t, p.doc.Find("script:not([src])").Length())
}

func TestCancellingLastLeaveResetsCounters(t *testing.T) {
	b := newBrowser(t)
	p := b.login(demoEmail, demoPassword)
	token := csrfOf(p)
	require.Equal(t, "1", strings.TrimSpace(p.doc.Find("#pending-leave").Text()))

	action, ok := p.doc.Find("#panel-leave-requests td.row-actions form").Attr("action")
	require.True(t, ok)
	p = b.post(action, url.Values{"csrf": {token}, "return_to": {"/dashboard"}})
	require.Contains(t, notices(p), "Leave request cancelled")
	require.Zero(t, bodyRows(p, "leave-requests").Length())
	require.Equal(t, "0", strings.TrimSpace(p.doc.Find("#pending-leave").Text()))
	require.Equal(t, "14", strings.TrimSpace(p.doc.Find("#annual-balance").Text()))
}

func TestAdminSalaryHistoryLookup(t *testing.T) {
	b := newBrowser(t)
	token := csrfOf(b.login(adminEmail, adminPassword))

	p := b.get("/admin")
	require.Zero(t, bodyRows(p, "admin-salary-history").Length())
	require.Contains(t, p.doc.Find("#panel-admin-salary-history").Text(), "Nothing loaded yet")

	p = b.post("/actions/update-employee", url.Values{"csrf": {token}, "key": {demoEmail}, "salary": {"7200"}, "return_to": {"/admin"}})
	require.Contains(t, notices(p), "Employee updated successfully")

	p = b.get("/admin?history=" + url.QueryEscape(demoEmail))
	require.Equal(t, 1, bodyRows(p, "admin-salary-history").Length())
	require.Contains(t, bodyRows(p, "admin-salary-history").Text(), "RM 7,200.00")
	refresh, ok := p.doc.Find("#panel-admin-salary-history a[data-refresh]").Attr("href")
	require.True(t, ok)
	require.Equal(t, "/views/admin-salary-history?key="+url.QueryEscape(demoEmail), refresh)

	require.Equal(t, http.StatusOK, b.get(refresh).status)
	require.Equal(t, http.StatusBadRequest, b.get("/views/admin-salary-history").status)

	p = b.get("/admin?history=nobody%40hrms.local")
	require.Contains(t, notices(p), "Failed to load salary history: employee not found")
}
