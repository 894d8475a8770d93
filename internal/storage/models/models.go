package models

import "time"

// ExportRecord is one CSV download.
type ExportRecord struct {
	ID        string    `json:"id"`
	Filter    string    `json:"filter"`
	Columns   []string  `json:"columns"`
	Rows      int       `json:"rows"`
	Client    string    `json:"client,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchRecord is one advanced descriptor search.
type SearchRecord struct {
	ID        string    `json:"id"`
	Terms     []string  `json:"terms"`
	Found     int       `json:"found"`
	Client    string    `json:"client,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type History struct {
	Exports  []ExportRecord `json:"exports"`
	Searches []SearchRecord `json:"searches"`
}
