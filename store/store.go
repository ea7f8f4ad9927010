// Package store keeps assignment reports produced by the grading service.
package store

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"errors"

	"github.com/curriculagg/curricula-grade/report"
)

const randIDLength = 10

var (
	// ErrNotFound is returned when no report exists for an id
	ErrNotFound = errors.New("report not found")

	errUniqueIDNotGenerated = errors.New("unique id does not exist after tried 50 times")
)

// Store defines interface to store reports
type Store interface {
	Add(name string, r *report.AssignmentReport) (string, error) // Add stores a report under a new id
	Get(id string) (string, *report.AssignmentReport, error)     // Get returns the name and report of id, ErrNotFound if missing
	Remove(id string) bool                                       // Remove deletes a report by id
	List() map[string]string                                     // List returns id to name of all reports
}

func generateID() (string, error) {
	b := make([]byte, randIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

func generateUniqueID(isExists func(string) bool) (string, error) {
	for range 50 {
		id, err := generateID()
		if err != nil {
			return "", err
		}
		if !isExists(id) {
			return id, nil
		}
	}
	return "", errUniqueIDNotGenerated
}

func encode(r *report.AssignmentReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := report.Dump(&buf, r, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte) (*report.AssignmentReport, error) {
	return report.Load(bytes.NewReader(b))
}
