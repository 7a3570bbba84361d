// internal/app/alert_scan_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/alert"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/contract"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/delivery"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/directory"
	idb "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/database" // Alias for repository errors

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Reminder windows, in days before the deadline. A reminder fires only on the
// exact day a window is crossed; the dispatch log keeps it from firing twice.
var rentalReminderOffsets = map[int]bool{0: true, 1: true, 3: true}
var fixedTermReminderOffsets = map[int]bool{0: true, 1: true, 3: true, 7: true}

// ScanResult aggregates the outcome of one scan run: successful sends per
// channel plus the per-alert evaluation errors that were isolated along the
// way.
type ScanResult struct {
	RunID  string   `json:"run_id"`
	Email  int      `json:"email"`
	Push   int      `json:"push"`
	Errors []string `json:"-"`
}

// AlertScanner is the operation exposed to the scheduler and the manual
// HTTP trigger.
type AlertScanner interface {
	// ScanAndSend evaluates every pending alert against the as-of date and
	// dispatches due reminders at most once per (alert, channel, day,
	// threshold).
	ScanAndSend(ctx context.Context, asOf time.Time) (*ScanResult, error)
}

// AlertScanService implements the scan-and-dispatch core.
type AlertScanService struct {
	alertRepo     alert.Repository
	contractRepo  contract.Repository
	dirRepo       directory.Repository
	emailSender   delivery.EmailSender
	pushSender    delivery.PushSender // nil when the push channel is not configured
	logger        *logrus.Logger
	overrideEmail string // operator-configured address always added to recipient sets
}

func NewAlertScanService(
	ar alert.Repository,
	cr contract.Repository,
	dr directory.Repository,
	es delivery.EmailSender,
	ps delivery.PushSender,
	logger *logrus.Logger,
	overrideEmail string,
) *AlertScanService {
	return &AlertScanService{
		alertRepo:     ar,
		contractRepo:  cr,
		dirRepo:       dr,
		emailSender:   es,
		pushSender:    ps,
		logger:        logger,
		overrideEmail: overrideEmail,
	}
}

// ScanAndSend evaluates every pending alert. Each alert is processed in
// isolation: an evaluation error is collected on the result and never aborts
// the batch, so one malformed contract cannot block the rest of the day's
// reminders.
func (s *AlertScanService) ScanAndSend(ctx context.Context, asOf time.Time) (*ScanResult, error) {
	runID := uuid.NewString()
	asOf = contract.DateOnly(asOf)
	s.logger.Infof("Starting alert scan %s for as-of date %s", runID, asOf.Format("2006-01-02"))

	pending, err := s.alertRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	s.logger.Infof("Scan %s: %d pending alerts to evaluate.", runID, len(pending))

	result := &ScanResult{RunID: runID}
	for _, a := range pending {
		if err := s.evaluateAlert(ctx, a, asOf, result); err != nil {
			s.logger.Errorf("Scan %s: evaluation of alert %d failed: %v", runID, a.ID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("alert %d: %v", a.ID, err))
		}
	}

	s.logger.Infof("Scan %s finished. Email sends: %d, push sends: %d, alert errors: %d",
		runID, result.Email, result.Push, len(result.Errors))
	return result, nil
}

func (s *AlertScanService) evaluateAlert(ctx context.Context, a *alert.Alert, asOf time.Time, result *ScanResult) error {
	switch a.Type {
	case alert.TypeRentalInstallment:
		return s.evaluateRentalAlert(ctx, a, asOf, result)
	case alert.TypeContractEnd:
		return s.evaluateContractEndAlert(ctx, a, asOf, result)
	case alert.TypeCustom:
		return s.evaluateCustomAlert(ctx, a, asOf, result)
	default:
		return fmt.Errorf("unknown alert type: %s", a.Type)
	}
}

// evaluateRentalAlert handles alerts pinned to one monthly installment of a
// rental contract. The alert itself never leaves PENDIENTE through this path;
// only the dispatch log prevents duplicate sends on a given day.
func (s *AlertScanService) evaluateRentalAlert(ctx context.Context, a *alert.Alert, asOf time.Time, result *ScanResult) error {
	if !a.ContractID.Valid {
		return fmt.Errorf("rental installment alert %d has no contract reference", a.ID)
	}
	c, err := s.contractRepo.GetByID(ctx, a.ContractID.Int64)
	if err != nil {
		return fmt.Errorf("failed to load contract %d: %w", a.ContractID.Int64, err)
	}
	if c.Type != contract.TypeInstallmentRental {
		s.logger.Warnf("Alert %d is a rental installment alert but contract %d has type %s. Skipping.", a.ID, c.ID, c.Type)
		return nil
	}
	if asOf.Before(contract.DateOnly(c.StartDate)) {
		return nil // contract has not started yet
	}

	kActual := c.CurrentInstallment(asOf)
	// Each alert is pinned to exactly one installment; never fire for another
	// index, even if the due-day arithmetic would line up.
	if !a.PeriodIndex.Valid || int(a.PeriodIndex.Int32) != kActual {
		return nil
	}

	dueDate := c.InstallmentDueDate(kActual)
	delta := contract.DaysUntil(asOf, dueDate)
	if !rentalReminderOffsets[delta] {
		return nil
	}

	s.logger.Infof("Alert %d: installment %d of contract %d due %s (%d day(s) away). Dispatching.",
		a.ID, kActual, c.ID, dueDate.Format("2006-01-02"), delta)
	s.dispatch(ctx, a, c, asOf, alert.Installment(kActual), result)
	return nil
}

// evaluateContractEndAlert handles fixed-term ("anticrético") expiration
// alerts. Once the term has ended the alert transitions to ENVIADA as a
// terminal state, whether or not anything was actually delivered that day.
func (s *AlertScanService) evaluateContractEndAlert(ctx context.Context, a *alert.Alert, asOf time.Time, result *ScanResult) error {
	endDate := a.DueDate
	var c *contract.Contract
	if a.ContractID.Valid {
		loaded, err := s.contractRepo.GetByID(ctx, a.ContractID.Int64)
		if err != nil {
			return fmt.Errorf("failed to load contract %d: %w", a.ContractID.Int64, err)
		}
		c = loaded
		if c.EndDate.Valid {
			endDate = c.EndDate.Time
		}
	}

	delta := contract.DaysUntil(asOf, endDate)
	if fixedTermReminderOffsets[delta] {
		s.logger.Infof("Alert %d: contract end %s is %d day(s) away. Dispatching.",
			a.ID, contract.DateOnly(endDate).Format("2006-01-02"), delta)
		s.dispatch(ctx, a, c, asOf, alert.DaysBefore(delta), result)
	}

	if delta <= 0 {
		if err := s.alertRepo.UpdateStatus(ctx, a.ID, alert.StatusSent); err != nil {
			return fmt.Errorf("failed to mark contract-end alert %d as sent: %w", a.ID, err)
		}
		s.logger.Infof("Alert %d: contract term ended. Status set to %s.", a.ID, alert.StatusSent)
	}
	return nil
}

// evaluateCustomAlert handles manual one-shot alerts: they fire on their due
// date only and are considered handled once that day arrives, regardless of
// delivery success.
func (s *AlertScanService) evaluateCustomAlert(ctx context.Context, a *alert.Alert, asOf time.Time, result *ScanResult) error {
	if contract.DaysUntil(asOf, a.DueDate) != 0 {
		return nil
	}

	s.logger.Infof("Alert %d: custom alert due today. Dispatching.", a.ID)
	s.dispatch(ctx, a, nil, asOf, alert.DaysBefore(0), result)

	if err := s.alertRepo.UpdateStatus(ctx, a.ID, alert.StatusSent); err != nil {
		return fmt.Errorf("failed to mark custom alert %d as sent: %w", a.ID, err)
	}
	return nil
}

// dispatch resolves recipients and delivers through each configured channel,
// writing one dedup row per channel after the first successful send. Delivery
// failures are logged and counted but never propagate.
func (s *AlertScanService) dispatch(ctx context.Context, a *alert.Alert, c *contract.Contract, asOf time.Time, th alert.Threshold, result *ScanResult) {
	users, err := s.resolveRecipients(ctx, a, c)
	if err != nil {
		s.logger.Errorf("Alert %d: recipient resolution failed: %v", a.ID, err)
		result.Errors = append(result.Errors, fmt.Sprintf("alert %d: recipient resolution: %v", a.ID, err))
		return
	}

	addresses := collectAddresses(users, s.overrideEmail)
	if len(users) == 0 && len(addresses) == 0 {
		// No dedup row is written so the alert can still be retried once a
		// recipient exists.
		s.logger.Infof("Alert %d: empty recipient set, skipping this scan.", a.ID)
		return
	}

	result.Email += s.dispatchEmail(ctx, a, asOf, th, addresses)
	if s.pushSender != nil {
		result.Push += s.dispatchPush(ctx, a, asOf, th, users)
	}
}

func (s *AlertScanService) dispatchEmail(ctx context.Context, a *alert.Alert, asOf time.Time, th alert.Threshold, addresses []string) int {
	if len(addresses) == 0 {
		return 0
	}

	exists, err := s.alertRepo.DispatchExists(ctx, a.ID, alert.ChannelEmail, asOf, th)
	if err != nil {
		s.logger.Errorf("Alert %d: email dedup check failed: %v", a.ID, err)
		return 0
	}
	if exists {
		s.logger.Debugf("Alert %d: email already dispatched today for this threshold.", a.ID)
		return 0
	}

	sent := 0
	for _, addr := range addresses {
		if err := s.emailSender.Send(addr, a.Title, a.Body); err != nil {
			// Per-address failures never block the remaining addresses.
			s.logger.Warnf("Alert %d: email to %s failed: %v", a.ID, addr, err)
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0
	}

	s.recordDispatch(ctx, a, alert.ChannelEmail, asOf, th, sent)
	return sent
}

func (s *AlertScanService) dispatchPush(ctx context.Context, a *alert.Alert, asOf time.Time, th alert.Threshold, users []*directory.User) int {
	userIDs := make([]int64, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}
	tokens, err := s.dirRepo.ListDeviceTokens(ctx, userIDs)
	if err != nil {
		s.logger.Errorf("Alert %d: device token lookup failed: %v", a.ID, err)
		return 0
	}
	if len(tokens) == 0 {
		return 0
	}

	exists, err := s.alertRepo.DispatchExists(ctx, a.ID, alert.ChannelPush, asOf, th)
	if err != nil {
		s.logger.Errorf("Alert %d: push dedup check failed: %v", a.ID, err)
		return 0
	}
	if exists {
		s.logger.Debugf("Alert %d: push already dispatched today for this threshold.", a.ID)
		return 0
	}

	sent, stale, err := s.pushSender.SendToTokens(ctx, tokens, a.Title, a.Body)
	if err != nil {
		s.logger.Warnf("Alert %d: push delivery failed: %v", a.ID, err)
		return 0
	}
	if len(stale) > 0 {
		if err := s.dirRepo.RemoveDeviceTokens(ctx, stale); err != nil {
			s.logger.Errorf("Alert %d: failed to prune %d stale device tokens: %v", a.ID, len(stale), err)
		} else {
			s.logger.Infof("Alert %d: pruned %d stale device tokens.", a.ID, len(stale))
		}
	}
	if sent == 0 {
		return 0
	}

	s.recordDispatch(ctx, a, alert.ChannelPush, asOf, th, sent)
	return sent
}

// recordDispatch writes the dedup row for a channel that delivered to at
// least one recipient. A unique-constraint collision means a concurrent scan
// already recorded this threshold: advisory-idempotent, not fatal.
func (s *AlertScanService) recordDispatch(ctx context.Context, a *alert.Alert, ch alert.Channel, asOf time.Time, th alert.Threshold, sent int) {
	log := &alert.DispatchLog{
		AlertID:      a.ID,
		Channel:      ch,
		DispatchDate: asOf,
		Threshold:    th,
		SentCount:    sent,
	}
	if err := s.alertRepo.CreateDispatchLog(ctx, log); err != nil {
		if errors.Is(err, idb.ErrDuplicateDispatch) {
			s.logger.Warnf("Alert %d: dispatch log row for channel %s already written by a concurrent scan.", a.ID, ch)
			return
		}
		s.logger.Errorf("Alert %d: failed to write dispatch log for channel %s: %v", a.ID, ch, err)
	}
}

// resolveRecipients unions the alert's designated users, the members of its
// designated groups and, for contract-bound alerts, the contract's
// counterparties. Users are deduplicated by ID.
func (s *AlertScanService) resolveRecipients(ctx context.Context, a *alert.Alert, c *contract.Contract) ([]*directory.User, error) {
	seen := make(map[int64]bool)
	users := make([]*directory.User, 0)

	appendUsers := func(list []*directory.User) {
		for _, u := range list {
			if !seen[u.ID] {
				seen[u.ID] = true
				users = append(users, u)
			}
		}
	}

	individual, err := s.dirRepo.ListActiveByIDs(ctx, a.UserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve designated users: %w", err)
	}
	appendUsers(individual)

	members, err := s.dirRepo.ListActiveGroupMembers(ctx, a.GroupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group members: %w", err)
	}
	appendUsers(members)

	if c != nil {
		parties, err := s.dirRepo.ListActiveByIDs(ctx, c.PartyIDs())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve contract parties: %w", err)
		}
		appendUsers(parties)
	}

	return users, nil
}

// collectAddresses gathers contact addresses from the resolved users plus the
// optional operator override, deduplicated case-insensitively.
func collectAddresses(users []*directory.User, overrideEmail string) []string {
	seen := make(map[string]bool)
	addresses := make([]string, 0, len(users))
	add := func(addr string) {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		addresses = append(addresses, addr)
	}

	for _, u := range users {
		if u.Email.Valid {
			add(u.Email.String)
		}
	}
	if overrideEmail != "" {
		add(overrideEmail)
	}
	return addresses
}
