package apiapp

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"

	statusPending  = "pending"
	statusApproved = "approved"
	statusRejected = "rejected"

	annualEntitlement    = 14
	sickEntitlement      = 14
	emergencyEntitlement = 3

	maxFailedLogins = 5
	lockoutWindow   = 15 * time.Minute
)

var (
	errNotFound          = errors.New("not found")
	errAlreadyProcessed  = errors.New("already processed")
	errAlreadyCheckedIn  = errors.New("already checked in today")
	errNotCheckedIn      = errors.New("no check-in recorded today")
	errAlreadyCheckedOut = errors.New("already checked out today")
	errEmailTaken        = errors.New("email already registered")
	errInvalidRange      = errors.New("end date is before start date")
)

// lockedError reports a login refused because of repeated failures.
type lockedError struct {
	Until time.Time
}

func (e *lockedError) Error() string {
	return "account locked until " + e.Until.Format(time.RFC3339)
}

type user struct {
	ID               int64           `json:"id"`
	Email            string          `json:"email"`
	Role             string          `json:"role"`
	FullName         string          `json:"full_name"`
	Department       string          `json:"department"`
	Position         string          `json:"position"`
	EmploymentStatus string          `json:"employment_status"`
	Salary           decimal.Decimal `json:"salary"`
	JoinedAt         string          `json:"joined_at"`

	passwordHash string
	failed       int
	lockedUntil  time.Time
}

type attendanceRecord struct {
	ID           int64  `json:"id"`
	Email        string `json:"employee_email"`
	EmployeeName string `json:"employee_name"`
	Date         string `json:"date"`
	CheckInTime  string `json:"check_in_time"`
	CheckOutTime string `json:"check_out_time,omitempty"`
	Status       string `json:"status"`
}

type leaveRequest struct {
	ID           int64  `json:"id"`
	Email        string `json:"employee_email"`
	EmployeeName string `json:"employee_name"`
	LeaveType    string `json:"leave_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Days         int    `json:"days"`
	Reason       string `json:"reason,omitempty"`
	Status       string `json:"status"`
	DecidedBy    string `json:"decided_by,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type payslip struct {
	ID           int64           `json:"id"`
	Email        string          `json:"employee_email"`
	EmployeeName string          `json:"employee_name"`
	Month        string          `json:"month"`
	Year         int             `json:"year"`
	MonthYear    string          `json:"month_year"`
	Gross        decimal.Decimal `json:"gross_salary"`
	Basic        decimal.Decimal `json:"basic_salary"`
	Deductions   decimal.Decimal `json:"deductions"`
	Net          decimal.Decimal `json:"net_salary"`
	NetPay       decimal.Decimal `json:"net_pay"`
	Status       string          `json:"status"`
}

type bonusRecord struct {
	ID           int64           `json:"id"`
	Email        string          `json:"employee_email"`
	EmployeeName string          `json:"employee_name"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	CreatedAt    string          `json:"created_at"`
}

type trainingCourse struct {
	ID           int64  `json:"id"`
	Email        string `json:"employee_email"`
	EmployeeName string `json:"employee_name"`
	CourseName   string `json:"course_name"`
	Provider     string `json:"provider,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date,omitempty"`
	Status       string `json:"status"`
}

type trip struct {
	ID           int64  `json:"id"`
	Email        string `json:"employee_email"`
	EmployeeName string `json:"employee_name"`
	Destination  string `json:"destination"`
	Country      string `json:"country,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Duration     int    `json:"duration"`
	Status       string `json:"status"`
}

type salaryChange struct {
	ID             int64           `json:"id"`
	Email          string          `json:"employee_email"`
	EmployeeName   string          `json:"employee_name"`
	EffectiveDate  string          `json:"effective_date"`
	PreviousSalary decimal.Decimal `json:"previous_salary"`
	NewSalary      decimal.Decimal `json:"new_salary"`
}

// leaveBalance is the remaining entitlement for the current year.
type leaveBalance struct {
	Year      int `json:"year"`
	Annual    int `json:"annual"`
	Sick      int `json:"sick"`
	Emergency int `json:"emergency"`
}

type apiSession struct {
	ID        string
	Email     string
	ExpiresAt time.Time
}

// memoryStore keeps every HRMS table in process. Lists are returned newest
// first, the order the portal shows them in.
type memoryStore struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	seq   int64

	users      map[string]*user
	sessions   map[string]apiSession
	attendance []attendanceRecord
	leave      []leaveRequest
	payslips   []payslip
	bonuses    []bonusRecord
	training   []trainingCourse
	trips      []trip
	salaries   []salaryChange
}

func newMemoryStore(clock clockwork.Clock) *memoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &memoryStore{
		clock:    clock,
		users:    make(map[string]*user),
		sessions: make(map[string]apiSession),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *memoryStore) nextIDLocked() int64 {
	m.seq++
	return m.seq
}

func (m *memoryStore) today() string {
	return m.clock.Now().Format(dateLayout)
}

func (m *memoryStore) nameLocked(email string) string {
	if u, ok := m.users[email]; ok && u.FullName != "" {
		return u.FullName
	}
	return email
}

func (m *memoryStore) addUser(u user, passwordHash string) (user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	if _, ok := m.users[u.Email]; ok {
		return user{}, errEmailTaken
	}
	u.ID = m.nextIDLocked()
	u.passwordHash = passwordHash
	if u.EmploymentStatus == "" {
		u.EmploymentStatus = "active"
	}
	if u.JoinedAt == "" {
		u.JoinedAt = m.today()
	}
	m.users[u.Email] = &u
	return u, nil
}

// authenticate checks a password with verify and applies the lockout policy.
func (m *memoryStore) authenticate(email string, verify func(hash string) bool) (user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalizeEmail(email)]
	if !ok {
		return user{}, errNotFound
	}
	now := m.clock.Now()
	if now.Before(u.lockedUntil) {
		return user{}, &lockedError{Until: u.lockedUntil}
	}
	if !verify(u.passwordHash) {
		u.failed++
		if u.failed >= maxFailedLogins {
			u.failed = 0
			u.lockedUntil = now.Add(lockoutWindow)
			return user{}, &lockedError{Until: u.lockedUntil}
		}
		return user{}, errNotFound
	}
	u.failed = 0
	u.lockedUntil = time.Time{}
	return *u, nil
}

func (m *memoryStore) userByEmail(email string) (user, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[normalizeEmail(email)]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (m *memoryStore) listUsers() []user {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]user, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	return out
}

type employeePatch struct {
	FullName         string `json:"full_name"`
	Department       string `json:"department"`
	Position         string `json:"position"`
	EmploymentStatus string `json:"employment_status"`
	Salary           string `json:"salary"`
}

// updateUser applies the non-empty fields of patch. key is an id or email.
func (m *memoryStore) updateUser(key string, patch employeePatch) (user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.findUserLocked(key)
	if u == nil {
		return user{}, errNotFound
	}
	if patch.Salary != "" {
		salary, err := decimal.NewFromString(patch.Salary)
		if err != nil {
			return user{}, errors.Wrap(err, "salary")
		}
		if !salary.Equal(u.Salary) {
			m.salaries = append([]salaryChange{{
				ID:             m.nextIDLocked(),
				Email:          u.Email,
				EmployeeName:   m.nameLocked(u.Email),
				EffectiveDate:  m.today(),
				PreviousSalary: u.Salary,
				NewSalary:      salary,
			}}, m.salaries...)
		}
		u.Salary = salary
	}
	if v := strings.TrimSpace(patch.FullName); v != "" {
		u.FullName = v
	}
	if v := strings.TrimSpace(patch.Department); v != "" {
		u.Department = v
	}
	if v := strings.TrimSpace(patch.Position); v != "" {
		u.Position = v
	}
	if v := strings.TrimSpace(patch.EmploymentStatus); v != "" {
		u.EmploymentStatus = v
	}
	return *u, nil
}

func (m *memoryStore) findUserLocked(key string) *user {
	if u, ok := m.users[normalizeEmail(key)]; ok {
		return u
	}
	for _, u := range m.users {
		if formatID(u.ID) == key {
			return u
		}
	}
	return nil
}

func (m *memoryStore) createSession(id, email string, ttl time.Duration) apiSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := apiSession{ID: id, Email: normalizeEmail(email), ExpiresAt: m.clock.Now().Add(ttl)}
	m.sessions[id] = sess
	return sess
}

func (m *memoryStore) lookupSession(id string) (apiSession, user, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return apiSession{}, user{}, errNotFound
	}
	if !m.clock.Now().Before(sess.ExpiresAt) {
		delete(m.sessions, id)
		return apiSession{}, user{}, errNotFound
	}
	u, ok := m.users[sess.Email]
	if !ok {
		return apiSession{}, user{}, errNotFound
	}
	return sess, *u, nil
}

func (m *memoryStore) deleteSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *memoryStore) checkIn(email string) (attendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	date := now.Format(dateLayout)
	for _, rec := range m.attendance {
		if rec.Email == email && rec.Date == date {
			return attendanceRecord{}, errAlreadyCheckedIn
		}
	}
	status := "present"
	if now.Hour() > 9 || (now.Hour() == 9 && now.Minute() > 0) {
		status = "late"
	}
	rec := attendanceRecord{
		ID:           m.nextIDLocked(),
		Email:        email,
		EmployeeName: m.nameLocked(email),
		Date:         date,
		CheckInTime:  now.Format(clockLayout),
		Status:       status,
	}
	m.attendance = append([]attendanceRecord{rec}, m.attendance...)
	return rec, nil
}

func (m *memoryStore) checkOut(email string) (attendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	date := now.Format(dateLayout)
	for i := range m.attendance {
		rec := &m.attendance[i]
		if rec.Email != email || rec.Date != date {
			continue
		}
		if rec.CheckOutTime != "" {
			return attendanceRecord{}, errAlreadyCheckedOut
		}
		rec.CheckOutTime = now.Format(clockLayout)
		return *rec, nil
	}
	return attendanceRecord{}, errNotCheckedIn
}

func (m *memoryStore) listAttendance(email string) []attendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.attendance, email, func(r attendanceRecord) string { return r.Email })
}

type leaveSubmission struct {
	LeaveType string `json:"leave_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

func (m *memoryStore) submitLeave(email string, in leaveSubmission) (leaveRequest, error) {
	days, err := inclusiveDays(in.StartDate, in.EndDate)
	if err != nil {
		return leaveRequest{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req := leaveRequest{
		ID:           m.nextIDLocked(),
		Email:        email,
		EmployeeName: m.nameLocked(email),
		LeaveType:    strings.TrimSpace(in.LeaveType),
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Days:         days,
		Reason:       strings.TrimSpace(in.Reason),
		Status:       statusPending,
		CreatedAt:    m.clock.Now().UTC().Format(time.RFC3339),
	}
	m.leave = append([]leaveRequest{req}, m.leave...)
	return req, nil
}

// cancelLeave removes a pending request owned by email.
func (m *memoryStore) cancelLeave(email string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, req := range m.leave {
		if req.ID != id || req.Email != email {
			continue
		}
		if req.Status != statusPending {
			return errAlreadyProcessed
		}
		m.leave = append(m.leave[:i], m.leave[i+1:]...)
		return nil
	}
	return errNotFound
}

// decideLeave moves a pending request to status. A second decision on the
// same request fails with errAlreadyProcessed.
func (m *memoryStore) decideLeave(id int64, status, decidedBy string) (leaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.leave {
		req := &m.leave[i]
		if req.ID != id {
			continue
		}
		if req.Status != statusPending {
			return leaveRequest{}, errAlreadyProcessed
		}
		req.Status = status
		req.DecidedBy = decidedBy
		return *req, nil
	}
	return leaveRequest{}, errNotFound
}

// salaryHistory lists the salary changes of the employee named by key, an id
// or email.
func (m *memoryStore) salaryHistory(key string) ([]salaryChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := m.findUserLocked(key)
	if u == nil {
		return nil, errNotFound
	}
	return filterByEmail(m.salaries, u.Email, func(r salaryChange) string { return r.Email }), nil
}

// leaveBalance subtracts this year's approved and pending days from the
// yearly entitlement of each leave type.
func (m *memoryStore) leaveBalance(email string) leaveBalance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	year := m.clock.Now().Year()
	balance := leaveBalance{Year: year, Annual: annualEntitlement, Sick: sickEntitlement, Emergency: emergencyEntitlement}
	prefix := strconv.Itoa(year) + "-"
	for _, req := range m.leave {
		if req.Email != email || req.Status == statusRejected || !strings.HasPrefix(req.StartDate, prefix) {
			continue
		}
		switch req.LeaveType {
		case "annual":
			balance.Annual -= req.Days
		case "sick":
			balance.Sick -= req.Days
		case "emergency":
			balance.Emergency -= req.Days
		}
	}
	balance.Annual = max(balance.Annual, 0)
	balance.Sick = max(balance.Sick, 0)
	balance.Emergency = max(balance.Emergency, 0)
	return balance
}

func (m *memoryStore) listLeave(email string) []leaveRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.leave, email, func(r leaveRequest) string { return r.Email })
}

// addPayslip stores a payslip with net computed from gross and deductions.
func (m *memoryStore) addPayslip(email string, year int, month time.Month, gross, deductions decimal.Decimal, status string) payslip {
	m.mu.Lock()
	defer m.mu.Unlock()
	net := gross.Sub(deductions)
	slip := payslip{
		ID:           m.nextIDLocked(),
		Email:        email,
		EmployeeName: m.nameLocked(email),
		Month:        month.String(),
		Year:         year,
		MonthYear:    time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		Gross:        gross,
		Basic:        gross,
		Deductions:   deductions,
		Net:          net,
		NetPay:       net,
		Status:       status,
	}
	m.payslips = append([]payslip{slip}, m.payslips...)
	return slip
}

func (m *memoryStore) listPayslips(email string) []payslip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.payslips, email, func(r payslip) string { return r.Email })
}

func (m *memoryStore) payslip(id int64) (payslip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, slip := range m.payslips {
		if slip.ID == id {
			return slip, nil
		}
	}
	return payslip{}, errNotFound
}

type bonusSubmission struct {
	EmployeeEmail string `json:"employee_email"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason"`
}

func (m *memoryStore) addBonus(in bonusSubmission) (bonusRecord, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return bonusRecord{}, errors.Wrap(err, "amount")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	email := normalizeEmail(in.EmployeeEmail)
	if _, ok := m.users[email]; !ok {
		return bonusRecord{}, errNotFound
	}
	rec := bonusRecord{
		ID:           m.nextIDLocked(),
		Email:        email,
		EmployeeName: m.nameLocked(email),
		Amount:       amount,
		Reason:       strings.TrimSpace(in.Reason),
		CreatedAt:    m.clock.Now().UTC().Format(time.RFC3339),
	}
	m.bonuses = append([]bonusRecord{rec}, m.bonuses...)
	return rec, nil
}

func (m *memoryStore) listBonuses() []bonusRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append(make([]bonusRecord, 0, len(m.bonuses)), m.bonuses...)
}

func (m *memoryStore) addTraining(in trainingCourse) (trainingCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in.Email = normalizeEmail(in.Email)
	if _, ok := m.users[in.Email]; !ok {
		return trainingCourse{}, errNotFound
	}
	if in.Status == "" {
		in.Status = "planned"
	}
	in.ID = m.nextIDLocked()
	in.EmployeeName = m.nameLocked(in.Email)
	m.training = append([]trainingCourse{in}, m.training...)
	return in, nil
}

func (m *memoryStore) listTraining(email string) []trainingCourse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.training, email, func(r trainingCourse) string { return r.Email })
}

func (m *memoryStore) addTrip(in trip) (trip, error) {
	days, err := inclusiveDays(in.StartDate, in.EndDate)
	if err != nil {
		return trip{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in.Email = normalizeEmail(in.Email)
	if _, ok := m.users[in.Email]; !ok {
		return trip{}, errNotFound
	}
	if in.Status == "" {
		in.Status = "planned"
	}
	if in.Country == "" {
		in.Country = in.Destination
	}
	in.ID = m.nextIDLocked()
	in.Duration = days
	in.EmployeeName = m.nameLocked(in.Email)
	m.trips = append([]trip{in}, m.trips...)
	return in, nil
}

func (m *memoryStore) listTrips(email string) []trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterByEmail(m.trips, email, func(r trip) string { return r.Email })
}

// filterByEmail copies rows owned by email, or every row when email is empty.
func filterByEmail[T any](rows []T, email string, owner func(T) string) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if email == "" || owner(row) == email {
			out = append(out, row)
		}
	}
	return out
}

func inclusiveDays(start, end string) (int, error) {
	from, err := time.Parse(dateLayout, strings.TrimSpace(start))
	if err != nil {
		return 0, errors.Wrap(err, "start date")
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(end))
	if err != nil {
		return 0, errors.Wrap(err, "end date")
	}
	if to.Before(from) {
		return 0, errInvalidRange
	}
	return int(to.Sub(from).Hours()/24) + 1, nil
}
