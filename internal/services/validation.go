package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

const dateLayout = "2006-01-02"

// maxPassengers bounds a voyage search
const maxPassengers = 10

// ValidateSearchRequest checks a voyage search. The departure date may be
// today or any later day.
func ValidateSearchRequest(req *ferry.VoyageSearchRequest, now time.Time) error {
	var problems []string

	if req.Origin <= 0 {
		problems = append(problems, "origin: Origin must be a positive integer")
	}
	if req.Destination <= 0 {
		problems = append(problems, "destination: Destination must be a positive integer")
	}
	if req.PassengerCount < 1 {
		problems = append(problems, "passengerCount: Number must be greater than or equal to 1")
	} else if req.PassengerCount > maxPassengers {
		problems = append(problems, "passengerCount: Maximum 10 passengers")
	}

	departure, err := parseDate(req.DepartureDate)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err != nil || departure.Before(today) {
		problems = append(problems, "departureDate: Invalid date or date must be in the future")
	}

	if len(problems) > 0 {
		return models.NewValidationError("", "Validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateComputeChargesRequest checks a compute-charges request and fills
// defaults for optional passenger fields
func ValidateComputeChargesRequest(req *ferry.ComputeChargesRequest) error {
	if len(req.PassengerList) == 0 {
		return models.NewValidationError("passengerList", "Invalid request: passengerList must be a non-empty array")
	}

	for i := range req.PassengerList {
		entry := &req.PassengerList[i]
		p := entry.Passenger
		if p == nil {
			return models.NewValidationError("passenger", "Invalid passenger info at index %d: Missing passenger details", i)
		}

		missing := ""
		switch {
		case strings.TrimSpace(p.FirstName) == "":
			missing = "firstname"
		case strings.TrimSpace(p.LastName) == "":
			missing = "lastname"
		case p.Gender == nil:
			missing = "gender"
		case strings.TrimSpace(p.Birthdate) == "":
			missing = "birthdate"
		case strings.TrimSpace(p.Nationality) == "":
			missing = "nationality"
		}
		if missing != "" {
			return models.NewValidationError(missing, "Invalid passenger info at index %d: Missing required field '%s'", i, missing)
		}

		if p.DiscountType == "" {
			p.DiscountType = "NONE"
		}

		if entry.DeparturePriceID.IsZero() {
			return models.NewValidationError("departurePriceId", "Invalid passenger at index %d: Missing departurePriceId", i)
		}
	}

	if req.IsServiceFee != 1 {
		req.IsServiceFee = 0
	}
	return nil
}

// ValidateTicketRequest checks a confirm-booking request
func ValidateTicketRequest(req *ferry.TicketRequest) error {
	if req == nil {
		return models.NewValidationError("", "Request body is required")
	}
	if len(req.Passengers) == 0 {
		return models.NewValidationError("passengers", "At least one passenger is required")
	}

	for i, entry := range req.Passengers {
		p := entry.Passenger
		if p == nil {
			return models.NewValidationError("passenger", "Passenger information is missing for passenger at index %d", i)
		}
		if entry.DeparturePriceID.IsZero() {
			return models.NewValidationError("departurePriceId", "Departure price ID is required for passenger at index %d", i)
		}

		checks := []struct {
			field string
			empty bool
			label string
		}{
			{"firstname", strings.TrimSpace(p.FirstName) == "", "First name"},
			{"lastname", strings.TrimSpace(p.LastName) == "", "Last name"},
			{"gender", p.Gender == nil, "Gender"},
			{"birthdate", strings.TrimSpace(p.Birthdate) == "", "Birthdate"},
			{"nationality", strings.TrimSpace(p.Nationality) == "", "Nationality"},
			{"discountType", strings.TrimSpace(p.DiscountType) == "", "Discount type"},
		}
		for _, c := range checks {
			if c.empty {
				return models.NewValidationError(c.field, "%s is required for passenger at index %d", c.label, i)
			}
		}
	}

	contact := req.ContactInfo
	if contact == nil {
		return models.NewValidationError("contactInfo", "Contact information is required")
	}
	switch {
	case strings.TrimSpace(contact.Name) == "":
		return models.NewValidationError("contactInfo.name", "Contact name is required")
	case strings.TrimSpace(contact.Email) == "":
		return models.NewValidationError("contactInfo.email", "Contact email is required")
	case strings.TrimSpace(contact.Mobile) == "":
		return models.NewValidationError("contactInfo.mobile", "Contact mobile number is required")
	case strings.TrimSpace(contact.Address) == "":
		return models.NewValidationError("contactInfo.address", "Contact address is required")
	}
	return nil
}

// ValidateTicketSearchRequest resolves the ticket search window. Missing
// dates default to the last windowDays days through today.
func ValidateTicketSearchRequest(criteria models.TicketSearchCriteria, now time.Time, windowDays int) (time.Time, time.Time, error) {
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -windowDays)

	if criteria.DateFrom != "" {
		parsed, err := parseDate(criteria.DateFrom)
		if err != nil {
			return time.Time{}, time.Time{}, models.NewValidationError("dateFrom", "dateFrom must be a date in YYYY-MM-DD format")
		}
		from = parsed
	}
	if criteria.DateTo != "" {
		parsed, err := parseDate(criteria.DateTo)
		if err != nil {
			return time.Time{}, time.Time{}, models.NewValidationError("dateTo", "dateTo must be a date in YYYY-MM-DD format")
		}
		to = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, models.NewValidationError("dateFrom", "dateFrom must not be after dateTo")
	}
	return from, to, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
