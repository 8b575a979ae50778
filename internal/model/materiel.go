package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DefaultQuantity is stored when the submitted quantity cannot be parsed.
const DefaultQuantity = 1

// Record represents one tracked piece of equipment.
type Record struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Usage        string    `json:"usage"`
	Model        string    `json:"modele"`
	Brand        string    `json:"marque"`
	SerialNumber string    `json:"numero_serie"`
	Quantity     int       `json:"quantite"`
	Status       string    `json:"statut"`
	Location     string    `json:"lieu"`
	Assignment   string    `json:"affectation"`
	CreatedAt    time.Time `json:"created"`
	ModifiedAt   time.Time `json:"modified"`
}

// QuantityInput holds the raw quantity as submitted by a client. Parsing
// happens during normalization.
type QuantityInput string

// UnmarshalJSON keeps numbers and strings as text. Any other JSON value
// (null, booleans, arrays, objects) is stored empty and normalizes to
// DefaultQuantity.
func (q *QuantityInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*q = ""
	if len(data) == 0 {
		return nil
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = QuantityInput(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*q = QuantityInput(n.String())
	}
	return nil
}

// Int parses the quantity the way a lenient form field would: leading
// whitespace is skipped and the leading run of digits is used. Anything
// unparsable or negative yields DefaultQuantity.
func (q QuantityInput) Int() int {
	s := strings.TrimSpace(string(q))
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return DefaultQuantity
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return DefaultQuantity
	}
	return n
}

// RecordInput is the client payload for creating or updating a record.
type RecordInput struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Usage        string        `json:"usage"`
	Model        string        `json:"modele"`
	Brand        string        `json:"marque"`
	SerialNumber string        `json:"numero_serie"`
	Quantity     QuantityInput `json:"quantite"`
	Status       string        `json:"statut"`
	Location     string        `json:"lieu"`
	Assignment   string        `json:"affectation"`
}

// Normalize turns the input into a record without timestamps. Applying it to
// the input of an already normalized record returns the same values.
func (in RecordInput) Normalize() Record {
	return Record{
		ID:           strings.TrimSpace(in.ID),
		Type:         in.Type,
		Usage:        in.Usage,
		Model:        in.Model,
		Brand:        in.Brand,
		SerialNumber: in.SerialNumber,
		Quantity:     in.Quantity.Int(),
		Status:       in.Status,
		Location:     in.Location,
		Assignment:   in.Assignment,
	}
}

// InputFromRecord builds the input that would reproduce r.
func InputFromRecord(r Record) RecordInput {
	return RecordInput{
		ID:           r.ID,
		Type:         r.Type,
		Usage:        r.Usage,
		Model:        r.Model,
		Brand:        r.Brand,
		SerialNumber: r.SerialNumber,
		Quantity:     QuantityInput(strconv.Itoa(r.Quantity)),
		Status:       r.Status,
		Location:     r.Location,
		Assignment:   r.Assignment,
	}
}

// RecordsDocument is the persisted layout of the record collection.
type RecordsDocument struct {
	Materiels  []Record `json:"materiels"`
	LastUpdate string   `json:"lastUpdate"`
	Version    string   `json:"version"`
}

// RecordsDocumentVersion is written into every records document.
const RecordsDocumentVersion = "1.0"
