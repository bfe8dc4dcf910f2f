package models

import "math"

// Service names offered by the business
const (
	ServiceDailyWalk30    = "Daily Walk (30 min)"
	ServiceDailyWalk60    = "Daily Walk (60 min)"
	ServicePetSitting     = "Pet Sitting"
	ServiceEmergencyVisit = "Emergency Visit"
	ServiceOther          = "Other"
)

// ServicePricing maps each service to its price in dollars
var ServicePricing = map[string]float64{
	ServiceDailyWalk30:    25,
	ServiceDailyWalk60:    35,
	ServicePetSitting:     40,
	ServiceEmergencyVisit: 50,
	ServiceOther:          0,
}

// Services lists the accepted service names in display order
var Services = []string{
	ServiceDailyWalk30,
	ServiceDailyWalk60,
	ServicePetSitting,
	ServiceEmergencyVisit,
	ServiceOther,
}

// PriceForService returns the price for a service. Unknown services cost 0.
func PriceForService(service string) float64 {
	return ServicePricing[service]
}

// IsKnownService reports whether service is in the closed set
func IsKnownService(service string) bool {
	_, ok := ServicePricing[service]
	return ok
}

// ToMinorUnits converts a dollar amount to cents
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts cents to a dollar amount
func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
