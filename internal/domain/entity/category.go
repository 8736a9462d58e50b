package entity

import "strings"

// categoryHints maps label fragments to categories, checked in order
var categoryHints = []struct {
	fragment string
	category Category
}{
	{"room", CategoryRoomRent},
	{"bed", CategoryRoomRent},
	{"ward", CategoryRoomRent},
	{"icu", CategoryRoomRent},
	{"surg", CategorySurgery},
	{"operation", CategorySurgery},
	{"ot charge", CategorySurgery},
	{"anaesth", CategorySurgery},
	{"anesth", CategorySurgery},
	{"procedure", CategorySurgery},
	{"consumable", CategoryConsumables},
	{"disposable", CategoryConsumables},
	{"gloves", CategoryConsumables},
	{"pharmacy", CategoryMedicines},
	{"medicine", CategoryMedicines},
	{"drug", CategoryMedicines},
	{"registration", CategoryRegistrationFee},
	{"admission", CategoryRegistrationFee},
	{"admin", CategoryRegistrationFee},
	{"diagnostic", CategoryLab},
	{"laboratory", CategoryLab},
	{"lab", CategoryLab},
	{"scan", CategoryLab},
	{"x-ray", CategoryLab},
	{"xray", CategoryLab},
	{"radiology", CategoryLab},
	{"pathology", CategoryLab},
	{"service", CategoryServiceCharge},
	{"doctor", CategoryOther},
	{"consultation", CategoryOther},
}

// NormalizeCategory maps a free-form category or label onto the controlled
// vocabulary. Exact values win; otherwise the first matching hint is used and
// anything unrecognised becomes CategoryOther.
func NormalizeCategory(raw string) Category {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	if c := Category(s); c.IsValid() {
		return c
	}

	s = strings.ReplaceAll(s, "_", " ")
	for _, hint := range categoryHints {
		if strings.Contains(s, hint.fragment) {
			return hint.category
		}
	}
	return CategoryOther
}
