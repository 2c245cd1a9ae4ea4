// Package model defines the opportunity record and the result types the
// enrichment engines report.
package model

import (
	"strings"
	"time"
)

// OpportunityType classifies a clinical-experience site.
type OpportunityType string

const (
	TypeHospital  OpportunityType = "hospital"
	TypeClinic    OpportunityType = "clinic"
	TypeHospice   OpportunityType = "hospice"
	TypeEMT       OpportunityType = "emt"
	TypeVolunteer OpportunityType = "volunteer"
)

// AcceptanceLikelihood estimates how likely an applicant is to be accepted.
type AcceptanceLikelihood string

const (
	LikelihoodHigh   AcceptanceLikelihood = "high"
	LikelihoodMedium AcceptanceLikelihood = "medium"
	LikelihoodLow    AcceptanceLikelihood = "low"
)

// Opportunity is a clinical-experience facility record. Latitude and
// Longitude are jointly present or jointly nil. A Location containing a
// comma already carries a resolved state ("Denver, Colorado"); one without
// a comma is city-only and is completed by the coordinate repair engine.
type Opportunity struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	Type                 OpportunityType      `json:"type"`
	Location             string               `json:"location"`
	Address              string               `json:"address,omitempty"`
	Latitude             *float64             `json:"latitude,omitempty"`
	Longitude            *float64             `json:"longitude,omitempty"`
	Website              *string              `json:"website,omitempty"`
	Email                *string              `json:"email,omitempty"`
	Phone                *string              `json:"phone,omitempty"`
	Requirements         []string             `json:"requirements,omitempty"`
	HoursRequired        string               `json:"hours_required,omitempty"`
	AcceptanceLikelihood AcceptanceLikelihood `json:"acceptance_likelihood,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	CreatedBy            *string              `json:"created_by,omitempty"`
}

// DedupeKey returns the normalized (name, location) key used to detect
// duplicate records.
func (o Opportunity) DedupeKey() string {
	name := strings.ToLower(strings.TrimSpace(o.Name))
	loc := strings.ToLower(strings.TrimSpace(o.Location))
	return name + "|" + loc
}

// HasState reports whether the location string already carries a resolved
// state suffix.
func (o Opportunity) HasState() bool {
	return strings.Contains(o.Location, ",")
}

// ImportResult accumulates the outcome of one import run.
type ImportResult struct {
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Total      int      `json:"total"`
	Batches    int      `json:"batches"`
	NextOffset int      `json:"next_offset"`
	Errors     []string `json:"errors,omitempty"`
}

// Processed returns the number of records touched across all batches.
func (r ImportResult) Processed() int {
	return r.Imported + r.Skipped + r.Failed
}

// DedupResult reports a deduplication run.
type DedupResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
}

// RepairResult reports one coordinate repair invocation. Checkpoint lists
// the ids not yet attempted so a caller can resume without rescanning.
type RepairResult struct {
	Geocoded   int      `json:"geocoded"`
	Failed     int      `json:"failed"`
	Remaining  int      `json:"remaining"`
	Checkpoint []string `json:"checkpoint,omitempty"`
}

// LinkOutcome reports one link discovery attempt. Reason explains why
// nothing was accepted when both found flags are false.
type LinkOutcome struct {
	ID           string  `json:"id"`
	WebsiteFound bool    `json:"website_found"`
	EmailFound   bool    `json:"email_found"`
	Website      *string `json:"website,omitempty"`
	Email        *string `json:"email,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// LinkRunResult aggregates a batch of link discovery outcomes.
type LinkRunResult struct {
	Processed int           `json:"processed"`
	Websites  int           `json:"websites"`
	Emails    int           `json:"emails"`
	Skipped   int           `json:"skipped"`
	Outcomes  []LinkOutcome `json:"outcomes,omitempty"`
}
