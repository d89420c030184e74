package geo

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"uidai-insights/internal/models"
)

// regionNames maps non-canonical region names, after title-casing, onto the names
// used by the boundary dataset. Names missing from the table are taken as canonical.
var regionNames = map[string]string{
	// truncated by the source export
	"Uttar Prad": "Uttar Pradesh",
	"Saharanpu":  "Saharanpur",
	"Pratapgar":  "Pratapgarh",
	"Muzaffarn":  "Muzaffarnagar",
	"Rae Bareli": "Raebareli",

	// spelling variants and renamed states
	"Telengana":   "Telangana",
	"Chattisgarh": "Chhattisgarh",
	"Orissa":      "Odisha",
	"Pondicherry": "Puducherry",

	// union territories, including the merged Dadra/Daman territory
	"Delhi":                                    "NCT of Delhi",
	"Andaman":                                  "Andaman and Nicobar Islands",
	"Andaman & Nicobar":                        "Andaman and Nicobar Islands",
	"Andaman And Nicobar Islands":              "Andaman and Nicobar Islands",
	"Dadra Nagar Haveli":                       "Dadra and Nagar Haveli and Daman and Diu",
	"Dadra & Nagar Haveli":                     "Dadra and Nagar Haveli and Daman and Diu",
	"Dadra And Nagar Haveli And Daman And Diu": "Dadra and Nagar Haveli and Daman and Diu",
	"Daman":                                    "Dadra and Nagar Haveli and Daman and Diu",
	"Daman And Diu":                            "Dadra and Nagar Haveli and Daman and Diu",

	"Jammu & Kashmir":   "Jammu and Kashmir",
	"Jammu And Kashmir": "Jammu and Kashmir",
	"Ladakh":            "Ladakh",
}

// TitleCase trims s and capitalizes the first letter of each word
func TitleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// NormalizeName title-cases a free-text region name and maps it onto its canonical form
func NormalizeName(name string) string {
	titled := TitleCase(name)
	if canonical, ok := regionNames[titled]; ok {
		return canonical
	}
	return titled
}

// NormalizeNames returns copies of records with the region name in column normalized.
// The input records are not modified.
func NormalizeNames(records []models.Record, column string) []models.Record {
	out := make([]models.Record, len(records))
	for i, r := range records {
		out[i] = r.WithText(column, NormalizeName(r.Text(column)))
	}
	return out
}
