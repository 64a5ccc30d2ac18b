package medication

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Medication maps to the medications table: the drug catalog patients pick
// from when creating a reminder.
type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	GenericName    *string   `db:"generic_name" json:"generic_name,omitempty"`
	Form           *string   `db:"form" json:"form,omitempty"`
	Strength       *string   `db:"strength" json:"strength,omitempty"`
	Route          *string   `db:"route" json:"route,omitempty"`
	OverTheCounter bool      `db:"over_the_counter" json:"over_the_counter"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Label returns a human-readable one-line description, e.g.
// "Metformin 500mg (tablet)".
func (m *Medication) Label() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if m.Strength != nil && *m.Strength != "" {
		b.WriteString(" ")
		b.WriteString(*m.Strength)
	}
	if m.Form != nil && *m.Form != "" {
		b.WriteString(" (")
		b.WriteString(*m.Form)
		b.WriteString(")")
	}
	return b.String()
}
