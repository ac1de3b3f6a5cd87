// Package intake validates the persona-specific fields collected at
// booking time. The rules mirror the public booking form: transaction
// personas describe the property, lenders identify their institution.
package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/wctitle/titlebook/services/scheduling-service/internal/catalog"
)

// Details carries the persona-specific booking fields. Unused fields must be
// empty for the given persona.
type Details struct {
	PropertyAddress string `json:"property_address,omitempty"`
	ClosingDate     string `json:"closing_date,omitempty"`
	AgentName       string `json:"agent_name,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (d *Details) trim() {
	d.PropertyAddress = strings.TrimSpace(d.PropertyAddress)
	d.ClosingDate = strings.TrimSpace(d.ClosingDate)
	d.AgentName = strings.TrimSpace(d.AgentName)
	d.CompanyName = strings.TrimSpace(d.CompanyName)
	d.Notes = strings.TrimSpace(d.Notes)
}

// Validate trims all fields and checks the persona's requirements. Buyers
// and sellers must describe the transaction; lenders must name their
// company; agents need nothing beyond contact details. Fields that do not
// belong to the persona are rejected rather than silently dropped.
func (d *Details) Validate(p catalog.Persona) error {
	d.trim()
	switch p {
	case catalog.PersonaBuyer, catalog.PersonaSeller:
		if d.PropertyAddress == "" {
			return fmt.Errorf("property_address is required for persona %s", p)
		}
		if d.ClosingDate == "" {
			return fmt.Errorf("closing_date is required for persona %s", p)
		}
		if _, err := time.Parse("2006-01-02", d.ClosingDate); err != nil {
			return fmt.Errorf("closing_date must be YYYY-MM-DD")
		}
		if d.AgentName == "" {
			return fmt.Errorf("agent_name is required for persona %s", p)
		}
		if d.CompanyName != "" {
			return fmt.Errorf("company_name does not apply to persona %s", p)
		}
	case catalog.PersonaLender:
		if d.CompanyName == "" {
			return fmt.Errorf("company_name is required for persona %s", p)
		}
		if d.PropertyAddress != "" || d.ClosingDate != "" || d.AgentName != "" {
			return fmt.Errorf("transaction fields do not apply to persona %s", p)
		}
	case catalog.PersonaAgent:
		if d.PropertyAddress != "" || d.ClosingDate != "" || d.AgentName != "" || d.CompanyName != "" {
			return fmt.Errorf("intake fields do not apply to persona %s", p)
		}
	default:
		return fmt.Errorf("unknown persona %q", p)
	}
	return nil
}
