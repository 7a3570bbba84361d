package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/alert"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/contract"
	idb "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/database"
)

func TestGenerateInstallmentAlertsIsIdempotent(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		1: {
			ID:         1,
			Type:       contract.TypeInstallmentRental,
			StartDate:  date(2024, time.January, 31),
			TermMonths: sql.NullInt32{Int32: 6, Valid: true},
		},
	}}

	svc := NewAlertLifecycleService(alertRepo, contractRepo, quietLogger())

	first, err := svc.GenerateContractAlerts(context.Background(), 1)
	if err != nil {
		t.Fatalf("first generation returned error: %v", err)
	}
	if len(first) != 6 {
		t.Fatalf("first generation created %d alerts, want 6", len(first))
	}

	// Due dates follow the contract's month-by-month schedule, day clamped.
	if !first[0].DueDate.Equal(date(2024, time.February, 29)) {
		t.Errorf("installment 1 due date = %s, want 2024-02-29", first[0].DueDate.Format("2006-01-02"))
	}
	if !first[3].PeriodIndex.Valid || first[3].PeriodIndex.Int32 != 4 {
		t.Errorf("installment 4 period index = %v, want 4", first[3].PeriodIndex)
	}

	second, err := svc.GenerateContractAlerts(context.Background(), 1)
	if err != nil {
		t.Fatalf("second generation returned error: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second generation created %d alerts, want 0", len(second))
	}
	if len(alertRepo.alerts) != 6 {
		t.Errorf("stored alerts = %d, want 6", len(alertRepo.alerts))
	}
}

func TestGenerateContractEndAlert(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	endDate := date(2025, time.March, 1)
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		2: {
			ID:        2,
			Type:      contract.TypeFixedTerm,
			StartDate: date(2024, time.March, 1),
			EndDate:   sql.NullTime{Time: endDate, Valid: true},
		},
	}}

	svc := NewAlertLifecycleService(alertRepo, contractRepo, quietLogger())

	created, err := svc.GenerateContractAlerts(context.Background(), 2)
	if err != nil {
		t.Fatalf("generation returned error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(created))
	}
	if created[0].Type != alert.TypeContractEnd || !created[0].DueDate.Equal(endDate) {
		t.Errorf("alert = %s due %s, want %s due %s",
			created[0].Type, created[0].DueDate.Format("2006-01-02"),
			alert.TypeContractEnd, endDate.Format("2006-01-02"))
	}

	again, err := svc.GenerateContractAlerts(context.Background(), 2)
	if err != nil {
		t.Fatalf("second generation returned error: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second generation created %d alerts, want 0", len(again))
	}
}

func TestGenerateContractAlertsValidation(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	contractRepo := &fakeContractRepo{contracts: map[int64]*contract.Contract{
		3: {ID: 3, Type: contract.TypeSale, StartDate: date(2024, time.January, 1)},
		4: {ID: 4, Type: contract.TypeInstallmentRental, StartDate: date(2024, time.January, 1)},
		5: {ID: 5, Type: contract.TypeFixedTerm, StartDate: date(2024, time.January, 1)},
	}}

	svc := NewAlertLifecycleService(alertRepo, contractRepo, quietLogger())

	if _, err := svc.GenerateContractAlerts(context.Background(), 3); !errors.Is(err, ErrContractNotAlertable) {
		t.Errorf("sale contract: err = %v, want ErrContractNotAlertable", err)
	}
	if _, err := svc.GenerateContractAlerts(context.Background(), 4); !errors.Is(err, ErrMissingTermMonths) {
		t.Errorf("rental without term: err = %v, want ErrMissingTermMonths", err)
	}
	if _, err := svc.GenerateContractAlerts(context.Background(), 5); !errors.Is(err, ErrMissingEndDate) {
		t.Errorf("fixed-term without end date: err = %v, want ErrMissingEndDate", err)
	}
}

func TestCreateCustomAlertRequiresAudience(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	svc := NewAlertLifecycleService(alertRepo, &fakeContractRepo{}, quietLogger())

	if _, err := svc.CreateCustomAlert(context.Background(), "t", "b", date(2024, time.May, 1), nil, nil); !errors.Is(err, ErrNoTargetAudience) {
		t.Errorf("err = %v, want ErrNoTargetAudience", err)
	}

	a, err := svc.CreateCustomAlert(context.Background(), "Reunión", "Agenda",
		time.Date(2024, time.May, 1, 15, 30, 0, 0, time.UTC), nil, []int64{7})
	if err != nil {
		t.Fatalf("CreateCustomAlert returned error: %v", err)
	}
	if a.Status != alert.StatusPending {
		t.Errorf("status = %s, want %s", a.Status, alert.StatusPending)
	}
	if !a.DueDate.Equal(date(2024, time.May, 1)) {
		t.Errorf("due date = %s, want 2024-05-01 (time-of-day stripped)", a.DueDate)
	}
}

func TestMarkAlertReadChecksExistence(t *testing.T) {
	alertRepo := newFakeAlertRepo()
	svc := NewAlertLifecycleService(alertRepo, &fakeContractRepo{}, quietLogger())

	if err := svc.MarkAlertRead(context.Background(), 99, 1); !errors.Is(err, idb.ErrAlertNotFound) {
		t.Errorf("err = %v, want ErrAlertNotFound", err)
	}

	a := &alert.Alert{Type: alert.TypeCustom, Status: alert.StatusPending, UserIDs: []int64{1}}
	if err := alertRepo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	if err := svc.MarkAlertRead(context.Background(), a.ID, 1); err != nil {
		t.Errorf("MarkAlertRead returned error: %v", err)
	}
}
