package alert

import (
	"database/sql"
	"time"
)

// Type classifies what kind of reminder an alert represents.
type Type string

const (
	TypeRentalInstallment Type = "CUOTA_ALQUILER" // tied to one monthly payment of a rental contract
	TypeContractEnd       Type = "FIN_CONTRATO"   // tied to a fixed-term contract's expiration
	TypeCustom            Type = "PERSONALIZADA"  // ad hoc one-shot reminder
)

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusPending Status = "PENDIENTE"
	StatusSent    Status = "ENVIADA"
	// StatusExpired is defined in the schema but no scanner path produces it;
	// kept for parity with the back office until product decides its meaning.
	StatusExpired Status = "VENCIDA"
)

// Alert is one schedulable reminder. Rental contracts get one alert per
// installment, fixed-term contracts one alert for the end date, and custom
// alerts are created ad hoc.
type Alert struct {
	ID          int64
	Type        Type
	Title       string
	Body        string
	DueDate     time.Time
	PeriodIndex sql.NullInt32 // which installment this alert is pinned to, 1-based
	Status      Status
	ContractID  sql.NullInt64
	GroupIDs    []int64 // designated audience groups
	UserIDs     []int64 // designated individual users
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReadMarker records that a user has viewed an alert in the UI. One row per
// (alert, user) pair, created idempotently; irrelevant to dispatch.
type ReadMarker struct {
	ID      int64
	AlertID int64
	UserID  int64
	ReadAt  time.Time
}
