// Package store provides the record store for in-flight provisioning
// requests.
package store

import (
	"errors"
	"time"
)

var (
	// ErrConflict is returned by Create when a request already exists for
	// the subject. Errored requests block new ones until explicitly deleted.
	ErrConflict = errors.New("request already exists for subject")
	// ErrNotFound is returned when no record matches the given id or
	// subject.
	ErrNotFound = errors.New("request not found")
)

// Status is the lifecycle state of a provisioning request. The wire strings
// are what pollers see while their pipeline runs.
type Status string

const (
	StatusCreated Status = "REQUEST_CREATED"
	StatusError   Status = "ERROR"
	StatusReady   Status = "READY"
)

// ServerSubject is the subject key of the singleton server request.
const ServerSubject = "server"

// ClientSubject returns the subject key for the named client.
func ClientSubject(name string) string {
	return "client/" + name
}

// Record is one tracked provisioning request.
type Record struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	ClientName  string    `json:"client_name,omitempty"`
	ClientEmail string    `json:"client_email,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists provisioning-request records.
//
// Create must behave as a single atomic check-and-insert per subject: two
// concurrent creates for the same subject must not both succeed.
type Store interface {
	// Create persists rec, assigning rec.ID if empty, and returns the id.
	// Returns ErrConflict if any record exists for rec.Subject.
	Create(rec *Record) (string, error)
	FindByID(id string) (*Record, error)
	FindBySubject(subject string) (*Record, error)
	UpdateStatus(id string, status Status) error
	Delete(id string) error
}
