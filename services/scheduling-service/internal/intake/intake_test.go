package intake

import (
	"testing"

	"github.com/wctitle/titlebook/services/scheduling-service/internal/catalog"
)

func buyerDetails() Details {
	return Details{
		PropertyAddress: "123 Main St, Springfield",
		ClosingDate:     "2026-09-15",
		AgentName:       "Jordan Lee",
	}
}

func TestValidate_Buyer(t *testing.T) {
	d := buyerDetails()
	if err := d.Validate(catalog.PersonaBuyer); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	missing := buyerDetails()
	missing.AgentName = "  "
	if err := missing.Validate(catalog.PersonaBuyer); err == nil {
		t.Fatal("expected error for missing agent_name")
	}

	badDate := buyerDetails()
	badDate.ClosingDate = "09/15/2026"
	if err := badDate.Validate(catalog.PersonaSeller); err == nil {
		t.Fatal("expected error for malformed closing_date")
	}

	extra := buyerDetails()
	extra.CompanyName = "First Federal"
	if err := extra.Validate(catalog.PersonaBuyer); err == nil {
		t.Fatal("company_name must be rejected for transaction personas")
	}
}

func TestValidate_Lender(t *testing.T) {
	d := Details{CompanyName: "First Federal"}
	if err := d.Validate(catalog.PersonaLender); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	d = Details{}
	if err := d.Validate(catalog.PersonaLender); err == nil {
		t.Fatal("expected error for missing company_name")
	}

	d = Details{CompanyName: "First Federal", PropertyAddress: "123 Main St"}
	if err := d.Validate(catalog.PersonaLender); err == nil {
		t.Fatal("transaction fields must be rejected for lenders")
	}
}

func TestValidate_Agent(t *testing.T) {
	d := Details{Notes: "referred by closing team"}
	if err := d.Validate(catalog.PersonaAgent); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	d = Details{CompanyName: "First Federal"}
	if err := d.Validate(catalog.PersonaAgent); err == nil {
		t.Fatal("company_name must be rejected for agents")
	}
	d = Details{ClosingDate: "2026-09-15"}
	if err := d.Validate(catalog.PersonaAgent); err == nil {
		t.Fatal("closing_date must be rejected for agents")
	}
}

func TestValidate_TrimsFields(t *testing.T) {
	d := Details{CompanyName: "  First Federal  "}
	if err := d.Validate(catalog.PersonaLender); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if d.CompanyName != "First Federal" {
		t.Fatalf("expected trimmed company name, got %q", d.CompanyName)
	}
}
