package catalog

// defaultWeek is the office schedule: Mon-Fri 08:30-18:30, closed weekends.
var defaultWeek = WeekHours{
	Mon: Hours(510, 1110),
	Tue: Hours(510, 1110),
	Wed: Hours(510, 1110),
	Thu: Hours(510, 1110),
	Fri: Hours(510, 1110),
}

// Default returns the production catalog. Panics on a bad seed, which can
// only happen from a programming error caught at startup.
func Default() *Catalog {
	c, err := New([]AppointmentType{
		{
			ID:                  "buyer-closing",
			Title:               "Buyer Closing",
			Description:         "Finalize your home purchase with our expert team.",
			DurationMinutes:     60,
			BufferBeforeMinutes: 15,
			BufferAfterMinutes:  15,
			EligiblePersonas:    []Persona{PersonaBuyer},
			Location:            LocationInOffice,
			Hours:               defaultWeek,
			LeadTimeMinutes:     1440,
			SameDayCutoffHour:   12,
			CalendarID:          "closings",
		},
		{
			ID:                  "seller-closing",
			Title:               "Seller Closing",
			Description:         "Official signing and transfer for the sale of your property.",
			DurationMinutes:     45,
			BufferBeforeMinutes: 15,
			BufferAfterMinutes:  15,
			EligiblePersonas:    []Persona{PersonaSeller},
			Location:            LocationInOffice,
			Hours:               defaultWeek,
			LeadTimeMinutes:     1440,
			SameDayCutoffHour:   12,
			CalendarID:          "closings",
		},
		{
			ID:                  "agent-intro",
			Title:               "Agent Strategy Session",
			Description:         "Learn how we can streamline your business.",
			DurationMinutes:     30,
			BufferBeforeMinutes: 5,
			BufferAfterMinutes:  5,
			EligiblePersonas:    []Persona{PersonaAgent},
			Location:            LocationRemote,
			Hours:               defaultWeek,
			LeadTimeMinutes:     60,
			SameDayCutoffHour:   14,
			CalendarID:          "consults",
		},
		{
			ID:                  "lender-order",
			Title:               "Lender Order Review",
			Description:         "Review title requirements and documentation.",
			DurationMinutes:     30,
			BufferBeforeMinutes: 5,
			BufferAfterMinutes:  5,
			EligiblePersonas:    []Persona{PersonaLender},
			Location:            LocationRemote,
			Hours:               defaultWeek,
			LeadTimeMinutes:     60,
			SameDayCutoffHour:   15,
			CalendarID:          "consults",
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
