package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/alert"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/contract"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for the alert lifecycle service
var ErrContractNotAlertable = fmt.Errorf("contract type does not produce scheduled alerts")
var ErrMissingTermMonths = fmt.Errorf("rental contract has no term length configured")
var ErrMissingEndDate = fmt.Errorf("fixed-term contract has no end date configured")
var ErrNoTargetAudience = fmt.Errorf("custom alert needs at least one target group or user")

// AlertLifecycleService owns the operations around the scan core: generating
// the schedulable alerts when a contract is registered, creating ad hoc
// alerts, and the UI-facing read markers.
type AlertLifecycleService struct {
	alertRepo    alert.Repository
	contractRepo contract.Repository
	logger       *logrus.Logger
}

func NewAlertLifecycleService(ar alert.Repository, cr contract.Repository, logger *logrus.Logger) *AlertLifecycleService {
	return &AlertLifecycleService{alertRepo: ar, contractRepo: cr, logger: logger}
}

// GenerateContractAlerts creates the pending alerts a contract implies: one
// per installment for rental contracts, one for the end date of fixed-term
// contracts. Safe to call more than once; existing alerts are not duplicated.
func (s *AlertLifecycleService) GenerateContractAlerts(ctx context.Context, contractID int64) ([]*alert.Alert, error) {
	c, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contract %d: %w", contractID, err)
	}

	switch c.Type {
	case contract.TypeInstallmentRental:
		return s.generateInstallmentAlerts(ctx, c)
	case contract.TypeFixedTerm:
		return s.generateContractEndAlert(ctx, c)
	default:
		return nil, ErrContractNotAlertable
	}
}

func (s *AlertLifecycleService) generateInstallmentAlerts(ctx context.Context, c *contract.Contract) ([]*alert.Alert, error) {
	if !c.TermMonths.Valid || c.TermMonths.Int32 <= 0 {
		return nil, ErrMissingTermMonths
	}

	created := make([]*alert.Alert, 0, c.TermMonths.Int32)
	for k := 1; k <= int(c.TermMonths.Int32); k++ {
		exists, err := s.alertRepo.ExistsForContractPeriod(ctx, c.ID, alert.TypeRentalInstallment, k)
		if err != nil {
			return created, fmt.Errorf("failed to check existing installment alert (contract %d, installment %d): %w", c.ID, k, err)
		}
		if exists {
			s.logger.Infof("Installment alert for contract %d, installment %d already exists. Skipping.", c.ID, k)
			continue
		}

		dueDate := c.InstallmentDueDate(k)
		a := &alert.Alert{
			Type:        alert.TypeRentalInstallment,
			Title:       fmt.Sprintf("Pago de alquiler: cuota %d", k),
			Body:        fmt.Sprintf("La cuota %d del contrato %d vence el %s.", k, c.ID, dueDate.Format("02/01/2006")),
			DueDate:     dueDate,
			PeriodIndex: sql.NullInt32{Int32: int32(k), Valid: true},
			Status:      alert.StatusPending,
			ContractID:  sql.NullInt64{Int64: c.ID, Valid: true},
		}
		if err := s.alertRepo.Create(ctx, a); err != nil {
			return created, fmt.Errorf("failed to create installment alert (contract %d, installment %d): %w", c.ID, k, err)
		}
		created = append(created, a)
	}
	s.logger.Infof("Generated %d installment alerts for contract %d.", len(created), c.ID)
	return created, nil
}

func (s *AlertLifecycleService) generateContractEndAlert(ctx context.Context, c *contract.Contract) ([]*alert.Alert, error) {
	if !c.EndDate.Valid {
		return nil, ErrMissingEndDate
	}

	exists, err := s.alertRepo.ExistsForContractPeriod(ctx, c.ID, alert.TypeContractEnd, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing contract-end alert for contract %d: %w", c.ID, err)
	}
	if exists {
		s.logger.Infof("Contract-end alert for contract %d already exists. Skipping.", c.ID)
		return []*alert.Alert{}, nil
	}

	a := &alert.Alert{
		Type:       alert.TypeContractEnd,
		Title:      fmt.Sprintf("Vencimiento de contrato %d", c.ID),
		Body:       fmt.Sprintf("El contrato %d vence el %s.", c.ID, c.EndDate.Time.Format("02/01/2006")),
		DueDate:    c.EndDate.Time,
		Status:     alert.StatusPending,
		ContractID: sql.NullInt64{Int64: c.ID, Valid: true},
	}
	if err := s.alertRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create contract-end alert for contract %d: %w", c.ID, err)
	}
	s.logger.Infof("Generated contract-end alert %d for contract %d.", a.ID, c.ID)
	return []*alert.Alert{a}, nil
}

// CreateCustomAlert registers an ad hoc one-shot alert for the given targets.
func (s *AlertLifecycleService) CreateCustomAlert(ctx context.Context, title, body string, dueDate time.Time, groupIDs, userIDs []int64) (*alert.Alert, error) {
	if len(groupIDs) == 0 && len(userIDs) == 0 {
		return nil, ErrNoTargetAudience
	}

	a := &alert.Alert{
		Type:     alert.TypeCustom,
		Title:    title,
		Body:     body,
		DueDate:  contract.DateOnly(dueDate),
		Status:   alert.StatusPending,
		GroupIDs: groupIDs,
		UserIDs:  userIDs,
	}
	if err := s.alertRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create custom alert: %w", err)
	}
	s.logger.Infof("Created custom alert %d due %s.", a.ID, a.DueDate.Format("2006-01-02"))
	return a, nil
}

// MarkAlertRead records that a user viewed an alert. Idempotent.
func (s *AlertLifecycleService) MarkAlertRead(ctx context.Context, alertID, userID int64) error {
	if _, err := s.alertRepo.GetByID(ctx, alertID); err != nil {
		return err
	}
	return s.alertRepo.MarkRead(ctx, alertID, userID)
}

// AlertWithReadFlag pairs an alert with whether the requesting user has
// already viewed it.
type AlertWithReadFlag struct {
	Alert *alert.Alert
	Read  bool
}

// ListAlertsForUser returns the alerts targeted at a user (directly or via
// group membership) together with their read flags.
func (s *AlertLifecycleService) ListAlertsForUser(ctx context.Context, userID int64) ([]*AlertWithReadFlag, error) {
	alerts, err := s.alertRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for user %d: %w", userID, err)
	}
	read, err := s.alertRepo.ListReadAlertIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list read markers for user %d: %w", userID, err)
	}

	out := make([]*AlertWithReadFlag, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, &AlertWithReadFlag{Alert: a, Read: read[a.ID]})
	}
	return out, nil
}
