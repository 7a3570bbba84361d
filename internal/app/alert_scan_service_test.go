package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/alert"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/contract"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/directory"
	idb "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// --- in-memory fakes ---

type fakeAlertRepo struct {
	alerts map[int64]*alert.Alert
	logs   map[string]*alert.DispatchLog
	nextID int64
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[int64]*alert.Alert), logs: make(map[string]*alert.DispatchLog), nextID: 1}
}

func dispatchKey(alertID int64, ch alert.Channel, date time.Time, th alert.Threshold) string {
	return fmt.Sprintf("%d|%s|%s|%d|%d", alertID, ch, date.Format("2006-01-02"), th.Kind, th.Value)
}

func (r *fakeAlertRepo) Create(_ context.Context, a *alert.Alert) error {
	a.ID = r.nextID
	r.nextID++
	r.alerts[a.ID] = a
	return nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id int64) (*alert.Alert, error) {
	a, ok := r.alerts[id]
	if !ok {
		return nil, idb.ErrAlertNotFound
	}
	return a, nil
}

func (r *fakeAlertRepo) ListPending(_ context.Context) ([]*alert.Alert, error) {
	pending := make([]*alert.Alert, 0)
	for _, a := range r.alerts {
		if a.Status == alert.StatusPending {
			pending = append(pending, a)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (r *fakeAlertRepo) ListByUser(_ context.Context, _ int64) ([]*alert.Alert, error) {
	return nil, nil
}

func (r *fakeAlertRepo) UpdateStatus(_ context.Context, id int64, status alert.Status) error {
	a, ok := r.alerts[id]
	if !ok {
		return idb.ErrAlertNotFound
	}
	a.Status = status
	return nil
}

func (r *fakeAlertRepo) ExistsForContractPeriod(_ context.Context, contractID int64, alertType alert.Type, periodIndex int) (bool, error) {
	for _, a := range r.alerts {
		if a.ContractID.Valid && a.ContractID.Int64 == contractID && a.Type == alertType {
			if periodIndex == 0 || (a.PeriodIndex.Valid && int(a.PeriodIndex.Int32) == periodIndex) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeAlertRepo) DispatchExists(_ context.Context, alertID int64, ch alert.Channel, date time.Time, th alert.Threshold) (bool, error) {
	_, ok := r.logs[dispatchKey(alertID, ch, date, th)]
	return ok, nil
}

func (r *fakeAlertRepo) CreateDispatchLog(_ context.Context, l *alert.DispatchLog) error {
	key := dispatchKey(l.AlertID, l.Channel, l.DispatchDate, l.Threshold)
	if _, ok := r.logs[key]; ok {
		return idb.ErrDuplicateDispatch
	}
	r.logs[key] = l
	return nil
}

func (r *fakeAlertRepo) MarkRead(_ context.Context, _, _ int64) error { return nil }

func (r *fakeAlertRepo) ListReadAlertIDs(_ context.Context, _ int64) (map[int64]bool, error) {
	return map[int64]bool{}, nil
}

type fakeContractRepo struct {
	contracts map[int64]*contract.Contract
}

func (r *fakeContractRepo) GetByID(_ context.Context, id int64) (*contract.Contract, error) {
	c, ok := r.contracts[id]
	if !ok {
		return nil, idb.ErrContractNotFound
	}
	return c, nil
}

type fakeDirectory struct {
	users   map[int64]*directory.User
	members map[int64][]int64 // group -> user IDs
	tokens  map[int64][]string
	removed []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:   make(map[int64]*directory.User),
		members: make(map[int64][]int64),
		tokens:  make(map[int64][]string),
	}
}

func (d *fakeDirectory) addUser(id int64, email string) {
	u := &directory.User{ID: id, FirstName: fmt.Sprintf("user%d", id), IsActive: true}
	if email != "" {
		u.Email = sql.NullString{String: email, Valid: true}
	}
	d.users[id] = u
}

func (d *fakeDirectory) ListActiveByIDs(_ context.Context, ids []int64) ([]*directory.User, error) {
	out := make([]*directory.User, 0)
	for _, id := range ids {
		if u, ok := d.users[id]; ok && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListActiveGroupMembers(_ context.Context, groupIDs []int64) ([]*directory.User, error) {
	seen := make(map[int64]bool)
	out := make([]*directory.User, 0)
	for _, gid := range groupIDs {
		for _, uid := range d.members[gid] {
			if u, ok := d.users[uid]; ok && u.IsActive && !seen[uid] {
				seen[uid] = true
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListDeviceTokens(_ context.Context, userIDs []int64) ([]string, error) {
	out := make([]string, 0)
	for _, uid := range userIDs {
		out = append(out, d.tokens[uid]...)
	}
	return out, nil
}

func (d *fakeDirectory) RemoveDeviceTokens(_ context.Context, tokens []string) error {
	d.removed = append(d.removed, tokens...)
	return nil
}

type fakeEmailSender struct {
	sent      []string
	failAddrs map[string]bool
}

func (s *fakeEmailSender) Send(address, _, _ string) error {
	if s.failAddrs[address] {
		return fmt.Errorf("smtp rejected %s", address)
	}
	s.sent = append(s.sent, address)
	return nil
}

type fakePushSender struct {
	calls [][]string
	stale []string
}

func (s *fakePushSender) SendToTokens(_ context.Context, tokens []string, _, _ string) (int, []string, error) {
	s.calls = append(s.calls, tokens)
	sent := len(tokens) - len(s.stale)
	if sent < 0 {
		sent = 0
	}
	return sent, s.stale, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- test scaffolding ---

func rentalContract(id int64, start time.Time, dueDay int32, clientID int64) *contract.Contract {
	return &contract.Contract{
		ID:            id,
		Type:          contract.TypeInstallmentRental,
		StartDate:     start,
		MonthlyDueDay: sql.NullInt32{Int32: dueDay, Valid: dueDay > 0},
		TermMonths:    sql.NullInt32{Int32: 12, Valid: true},
		ClientID:      sql.NullInt64{Int64: clientID, Valid: clientID > 0},
	}
}

func installmentAlert(id, contractID int64, k int32, dueDate time.Time) *alert.Alert {
	return &alert.Alert{
		ID:          id,
		Type:        alert.TypeRentalInstallment,
		Title:       "Pago de alquiler",
		Body:        "Cuota pendiente",
		DueDate:     dueDate,
		PeriodIndex: sql.NullInt32{Int32: k, Valid: true},
		Status:      alert.StatusPending,
		ContractID:  sql.NullInt64{Int64: contractID, Valid: true},
	}
}

// --- tests ---

func TestRentalAlertFiresThreeDaysBeforeDueDate(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: rentalContract(1, date(2024, time.January, 10), 10, 100),
	}}
	dir := newFakeDirectory()
	dir.addUser(100, "client@example.com")
	emails := &fakeEmailSender{}

	a := installmentAlert(10, 1, 1, date(2024, time.February, 10))
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), date(2024, time.February, 7)) // 3 days before
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if result.Email != 1 {
		t.Errorf("email count = %d, want 1", result.Email)
	}
	if len(alertRepo.logs) != 1 {
		t.Errorf("dispatch log rows = %d, want 1", len(alertRepo.logs))
	}
	if a.Status != alert.StatusPending {
		t.Errorf("installment alert status = %s, want it to stay %s", a.Status, alert.StatusPending)
	}
}

func TestRentalAlertSkipsWhenPinnedToAnotherInstallment(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: rentalContract(1, date(2024, time.January, 10), 10, 100),
	}}
	dir := newFakeDirectory()
	dir.addUser(100, "client@example.com")
	emails := &fakeEmailSender{}

	// as-of 2024-05-08 puts the contract in installment 4, but this alert is
	// pinned to installment 3.
	a := installmentAlert(10, 1, 3, date(2024, time.April, 10))
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), date(2024, time.May, 8))
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if result.Email != 0 || len(emails.sent) != 0 {
		t.Errorf("expected no sends, got email count %d", result.Email)
	}
	if len(alertRepo.logs) != 0 {
		t.Errorf("expected no dispatch log rows, got %d", len(alertRepo.logs))
	}
}

func TestRentalAlertDoesNotFireBeforeContractStart(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: rentalContract(1, date(2024, time.June, 1), 1, 100),
	}}
	dir := newFakeDirectory()
	dir.addUser(100, "client@example.com")
	emails := &fakeEmailSender{}

	a := installmentAlert(10, 1, 1, date(2024, time.July, 1))
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), date(2024, time.May, 20))
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}
	if result.Email != 0 || len(alertRepo.logs) != 0 {
		t.Errorf("expected nothing to fire before contract start, got email=%d logs=%d", result.Email, len(alertRepo.logs))
	}
}

func TestScanIsIdempotentWithinOneDay(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: rentalContract(1, date(2024, time.January, 10), 10, 100),
	}}
	dir := newFakeDirectory()
	dir.addUser(100, "client@example.com")
	emails := &fakeEmailSender{}

	a := installmentAlert(10, 1, 1, date(2024, time.February, 10))
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	asOf := date(2024, time.February, 10) // on the due date

	first, err := svc.ScanAndSend(context.Background(), asOf)
	if err != nil {
		t.Fatalf("first scan returned error: %v", err)
	}
	second, err := svc.ScanAndSend(context.Background(), asOf)
	if err != nil {
		t.Fatalf("second scan returned error: %v", err)
	}

	if first.Email != 1 || second.Email != 0 {
		t.Errorf("email counts = (%d, %d), want (1, 0)", first.Email, second.Email)
	}
	if len(alertRepo.logs) != 1 {
		t.Errorf("dispatch log rows = %d, want exactly 1", len(alertRepo.logs))
	}
	if len(emails.sent) != 1 {
		t.Errorf("total email deliveries = %d, want 1", len(emails.sent))
	}
}

func TestFixedTermAlertTransitionsToSentOnExpiry(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	endDate := date(2024, time.August, 1)
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		2: {
			ID:        2,
			Type:      contract.TypeFixedTerm,
			StartDate: date(2023, time.August, 1),
			EndDate:   sql.NullTime{Time: endDate, Valid: true},
			OwnerID:   sql.NullInt64{Int64: 200, Valid: true},
		},
	}}
	dir := newFakeDirectory()
	dir.addUser(200, "owner@example.com")
	// Delivery fails for every address: the status transition must happen
	// anyway, and no dedup row may be written.
	emails := &fakeEmailSender{failAddrs: map[string]bool{"owner@example.com": true}}

	a := &alert.Alert{
		ID:         20,
		Type:       alert.TypeContractEnd,
		Title:      "Vencimiento de contrato",
		Body:       "El contrato vence hoy",
		DueDate:    endDate,
		Status:     alert.StatusPending,
		ContractID: sql.NullInt64{Int64: 2, Valid: true},
	}
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), endDate)
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if a.Status != alert.StatusSent {
		t.Errorf("alert status = %s, want %s regardless of delivery outcome", a.Status, alert.StatusSent)
	}
	if result.Email != 0 {
		t.Errorf("email count = %d, want 0 (all sends failed)", result.Email)
	}
	if len(alertRepo.logs) != 0 {
		t.Errorf("dispatch log rows = %d, want 0 when nothing was delivered", len(alertRepo.logs))
	}
}

func TestFixedTermAlertFiresSevenDaysBefore(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	endDate := date(2024, time.August, 8)
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		2: {
			ID:        2,
			Type:      contract.TypeFixedTerm,
			StartDate: date(2023, time.August, 8),
			EndDate:   sql.NullTime{Time: endDate, Valid: true},
			OwnerID:   sql.NullInt64{Int64: 200, Valid: true},
		},
	}}
	dir := newFakeDirectory()
	dir.addUser(200, "owner@example.com")
	emails := &fakeEmailSender{}

	a := &alert.Alert{
		ID:         20,
		Type:       alert.TypeContractEnd,
		Title:      "Vencimiento de contrato",
		Body:       "El contrato vence pronto",
		DueDate:    endDate,
		Status:     alert.StatusPending,
		ContractID: sql.NullInt64{Int64: 2, Valid: true},
	}
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), date(2024, time.August, 1))
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if result.Email != 1 {
		t.Errorf("email count = %d, want 1", result.Email)
	}
	if a.Status != alert.StatusPending {
		t.Errorf("alert status = %s, want %s (term has not ended)", a.Status, alert.StatusPending)
	}
}

func TestCustomAlertFiresOnceAndTransitionsToSent(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{}}
	dir := newFakeDirectory()
	dir.addUser(300, "agent@example.com")
	emails := &fakeEmailSender{}

	dueDate := date(2024, time.September, 5)
	a := &alert.Alert{
		ID:      30,
		Type:    alert.TypeCustom,
		Title:   "Reunión de oficina",
		Body:    "Hoy a las 10:00",
		DueDate: dueDate,
		Status:  alert.StatusPending,
		UserIDs: []int64{300},
	}
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	first, err := svc.ScanAndSend(context.Background(), dueDate)
	if err != nil {
		t.Fatalf("first scan returned error: %v", err)
	}
	second, err := svc.ScanAndSend(context.Background(), dueDate)
	if err != nil {
		t.Fatalf("second scan returned error: %v", err)
	}

	if first.Email != 1 || second.Email != 0 {
		t.Errorf("email counts = (%d, %d), want (1, 0)", first.Email, second.Email)
	}
	if a.Status != alert.StatusSent {
		t.Errorf("alert status = %s, want %s", a.Status, alert.StatusSent)
	}
	if len(alertRepo.logs) != 1 {
		t.Errorf("dispatch log rows = %d, want 1", len(alertRepo.logs))
	}
}

func TestEmptyRecipientSetIsRetriedNextDay(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: rentalContract(1, date(2024, time.January, 10), 10, 0), // no parties yet
	}}
	dir := newFakeDirectory()
	emails := &fakeEmailSender{}

	a := installmentAlert(10, 1, 1, date(2024, time.February, 10))
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")

	// Day N: the 1-day-before window is active but nobody can receive it.
	dayN, err := svc.ScanAndSend(context.Background(), date(2024, time.February, 9))
	if err != nil {
		t.Fatalf("day N scan returned error: %v", err)
	}
	if dayN.Email != 0 || len(alertRepo.logs) != 0 {
		t.Fatalf("day N: expected skip with no log row, got email=%d logs=%d", dayN.Email, len(alertRepo.logs))
	}

	// A recipient shows up before the next scan; the on-due-date window is
	// still active on day N+1.
	dir.addUser(100, "client@example.com")
	contractRepo.contracts[1].ClientID = sql.NullInt64{Int64: 100, Valid: true}

	dayN1, err := svc.ScanAndSend(context.Background(), date(2024, time.February, 10))
	if err != nil {
		t.Fatalf("day N+1 scan returned error: %v", err)
	}
	if dayN1.Email != 1 {
		t.Errorf("day N+1 email count = %d, want 1", dayN1.Email)
	}
}

func TestPerAlertIsolation(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{}} // contract 1 is missing
	dir := newFakeDirectory()
	dir.addUser(300, "agent@example.com")
	emails := &fakeEmailSender{}

	broken := installmentAlert(10, 1, 1, date(2024, time.February, 10))
	alertRepo.alerts[broken.ID] = broken

	dueDate := date(2024, time.February, 7)
	healthy := &alert.Alert{
		ID:      11,
		Type:    alert.TypeCustom,
		Title:   "Recordatorio",
		Body:    "Pendiente",
		DueDate: dueDate,
		Status:  alert.StatusPending,
		UserIDs: []int64{300},
	}
	alertRepo.alerts[healthy.ID] = healthy

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), dueDate)
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Errorf("isolated errors = %d, want 1", len(result.Errors))
	}
	if result.Email != 1 {
		t.Errorf("email count = %d, want 1 (healthy alert must still dispatch)", result.Email)
	}
}

func TestDuplicateEmailAddressesAreCollapsed(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{}}
	dir := newFakeDirectory()
	dir.addUser(300, "Agent@Example.com")
	dir.addUser(301, "agent@example.com") // same mailbox, different user row
	emails := &fakeEmailSender{}

	dueDate := date(2024, time.September, 5)
	a := &alert.Alert{
		ID:      30,
		Type:    alert.TypeCustom,
		Title:   "Aviso",
		Body:    "Cuerpo",
		DueDate: dueDate,
		Status:  alert.StatusPending,
		UserIDs: []int64{300, 301},
	}
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), dueDate)
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}
	if result.Email != 1 || len(emails.sent) != 1 {
		t.Errorf("email deliveries = %d (count %d), want 1", len(emails.sent), result.Email)
	}
}

func TestOverrideAddressAlwaysIncluded(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{}}
	dir := newFakeDirectory()
	dir.addUser(300, "agent@example.com")
	emails := &fakeEmailSender{}

	dueDate := date(2024, time.September, 5)
	a := &alert.Alert{
		ID:      30,
		Type:    alert.TypeCustom,
		Title:   "Aviso",
		Body:    "Cuerpo",
		DueDate: dueDate,
		Status:  alert.StatusPending,
		UserIDs: []int64{300},
	}
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, nil, quietLogger(), "monitor@example.com")
	result, err := svc.ScanAndSend(context.Background(), dueDate)
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}
	if result.Email != 2 {
		t.Errorf("email count = %d, want 2 (recipient + override)", result.Email)
	}
}

// racingAlertRepo simulates losing a race against a concurrent scan: the
// exists-check sees no dedup row, but the insert collides with one the other
// scan wrote in between.
type racingAlertRepo struct {
	*fakeAlertRepo
}

func (r *racingAlertRepo) DispatchExists(context.Context, int64, alert.Channel, time.Time, alert.Threshold) (bool, error) {
	return false, nil
}

func TestConcurrentDispatchCollisionIsNotAnError(t *testing.T) {
	inner := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: rentalContract(1, date(2024, time.January, 10), 10, 100),
	}}
	dir := newFakeDirectory()
	dir.addUser(100, "client@example.com")
	emails := &fakeEmailSender{}

	a := installmentAlert(10, 1, 1, date(2024, time.February, 10))
	inner.alerts[a.ID] = a

	asOf := date(2024, time.February, 7)
	th := alert.Installment(1)
	inner.logs[dispatchKey(a.ID, alert.ChannelEmail, asOf, th)] = &alert.DispatchLog{
		AlertID: a.ID, Channel: alert.ChannelEmail, DispatchDate: asOf, Threshold: th,
	}

	svc := NewAlertScanService(&racingAlertRepo{fakeAlertRepo: inner}, contractRepo, dir, emails, nil, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), asOf)
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Errorf("collision surfaced as alert errors: %v", result.Errors)
	}
	if result.Email != 1 {
		t.Errorf("email count = %d, want 1 (the delivery itself succeeded)", result.Email)
	}
	if len(inner.logs) != 1 {
		t.Errorf("dispatch log rows = %d, want only the concurrent scan's row", len(inner.logs))
	}
	if a.Status != alert.StatusPending {
		t.Errorf("alert status = %s, want %s", a.Status, alert.StatusPending)
	}
}

func TestPushChannelCountsAndPrunesStaleTokens(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{}}
	dir := newFakeDirectory()
	dir.addUser(300, "agent@example.com")
	dir.tokens[300] = []string{"tok-live", "tok-stale"}
	emails := &fakeEmailSender{}
	pushes := &fakePushSender{stale: []string{"tok-stale"}}

	dueDate := date(2024, time.September, 5)
	a := &alert.Alert{
		ID:      30,
		Type:    alert.TypeCustom,
		Title:   "Aviso",
		Body:    "Cuerpo",
		DueDate: dueDate,
		Status:  alert.StatusPending,
		UserIDs: []int64{300},
	}
	alertRepo.alerts[a.ID] = a

	svc := NewAlertScanService(alertRepo, contractRepo, dir, emails, pushes, quietLogger(), "")
	result, err := svc.ScanAndSend(context.Background(), dueDate)
	if err != nil {
		t.Fatalf("ScanAndSend returned error: %v", err)
	}

	if result.Push != 1 {
		t.Errorf("push count = %d, want 1", result.Push)
	}
	if len(dir.removed) != 1 || dir.removed[0] != "tok-stale" {
		t.Errorf("pruned tokens = %v, want [tok-stale]", dir.removed)
	}
	if len(alertRepo.logs) != 2 { // one email row, one push row
		t.Errorf("dispatch log rows = %d, want 2", len(alertRepo.logs))
	}
}
