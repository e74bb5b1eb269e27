// Package object provides the construction Object catalog (Справочник "Объекты").
// Objects are construction sites referenced by contracts, invoices and estimates.
package object

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
)

// Status defines the lifecycle status of a construction object.
type Status string

const (
	StatusPlanned    Status = "planned"     // Запланирован
	StatusInProgress Status = "in_progress" // В работе
	StatusCompleted  Status = "completed"   // Завершён
	StatusSuspended  Status = "suspended"   // Приостановлен
)

// Object represents a construction site.
type Object struct {
	entity.Catalog

	// Address is the site address
	Address string `db:"address" json:"address"`

	// Status is the current lifecycle status
	Status Status `db:"status" json:"status"`

	// Cipher is the short project code used in blob paths and reports
	Cipher string `db:"cipher" json:"cipher,omitempty"`

	StartDate *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"endDate,omitempty"`
}

// NewObject creates a new Object with required fields.
func NewObject(code, name, address string) *Object {
	return &Object{
		Catalog: entity.NewCatalog(code, name),
		Address: address,
		Status:  StatusPlanned,
	}
}

// Validate implements entity.Validatable interface.
func (o *Object) Validate(ctx context.Context) error {
	if err := o.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidStatus(o.Status) {
		return apperror.NewValidation("invalid object status").
			WithDetail("field", "status").
			WithDetail("value", string(o.Status))
	}

	if o.StartDate != nil && o.EndDate != nil && o.EndDate.Before(*o.StartDate) {
		return apperror.NewValidation("end date is before start date").
			WithDetail("field", "endDate")
	}

	return nil
}

// IsActive returns true when the object can accept new contracts and invoices.
func (o *Object) IsActive() bool {
	return o.Status == StatusPlanned || o.Status == StatusInProgress
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusSuspended:
		return true
	}
	return false
}
