// Package pins manages the user pin collection: country codes, grouping,
// region backfill, persistence and export.
package pins

import "strings"

var iso3to2 = map[string]string{
	"POL": "PL", "USA": "US", "BRA": "BR", "PRT": "PT", "DEU": "DE", "FRA": "FR", "GBR": "GB", "ITA": "IT",
	"ESP": "ES", "CAN": "CA", "MEX": "MX", "CHN": "CN", "JPN": "JP", "KOR": "KR", "IND": "IN", "AUS": "AU",
	"RUS": "RU", "UKR": "UA", "TUR": "TR", "SEN": "SN", "SWE": "SE", "NOR": "NO", "FIN": "FI", "DNK": "DK",
	"NLD": "NL", "BEL": "BE", "CHE": "CH", "AUT": "AT", "CZE": "CZ", "SVK": "SK", "HUN": "HU", "ROU": "RO",
	"ARG": "AR", "COL": "CO", "PER": "PE", "CHL": "CL", "ZAF": "ZA", "EGY": "EG", "NGA": "NG", "KEN": "KE",
	"ETH": "ET", "DZA": "DZ", "RWA": "RW", "AGO": "AO", "ZWE": "ZW", "ZMB": "ZM", "BWA": "BW", "SWZ": "SZ",
	"MOZ": "MZ",
}

// ISO3ToISO2 converts a region id into a two-letter flag code.
// Subdivision ids ("US_Texas") map to their country prefix. Unknown ids
// fall back to their first two letters.
func ISO3ToISO2(id string) string {
	if id == "" {
		return ""
	}
	if i := strings.IndexByte(id, '_'); i == 2 {
		return strings.ToUpper(id[:2])
	}
	if code, ok := iso3to2[strings.ToUpper(id)]; ok {
		return code
	}
	if len(id) < 2 {
		return strings.ToUpper(id)
	}
	return strings.ToUpper(id[:2])
}

// Continent names used for grouping.
const (
	Europe         = "Europe"
	NorthAmerica   = "North America"
	SouthAmerica   = "South America"
	Asia           = "Asia"
	Africa         = "Africa"
	Oceania        = "Australia and Oceania"
	Antarctica     = "Antarctica"
	OtherContinent = "Other"
)

// ContinentOrder is the display order of continent groups.
var ContinentOrder = []string{Europe, NorthAmerica, SouthAmerica, Asia, Africa, Oceania, Antarctica, OtherContinent}

var continents = map[string]string{
	"PL": Europe, "DE": Europe, "FR": Europe, "ES": Europe, "GB": Europe, "IT": Europe, "PT": Europe,
	"NL": Europe, "BE": Europe, "CH": Europe, "AT": Europe, "SE": Europe, "NO": Europe, "FI": Europe,
	"DK": Europe, "CZ": Europe, "SK": Europe, "HU": Europe, "GR": Europe, "RO": Europe, "BG": Europe,
	"HR": Europe, "RS": Europe, "BA": Europe, "AL": Europe, "MK": Europe, "ME": Europe, "SI": Europe,
	"UA": Europe, "BY": Europe, "RU": Europe, "EE": Europe, "LV": Europe, "LT": Europe, "IE": Europe,
	"IS": Europe,
	"CN": Asia, "JP": Asia, "KR": Asia, "IN": Asia, "TH": Asia, "VN": Asia, "ID": Asia, "MY": Asia,
	"SG": Asia, "PH": Asia, "PK": Asia, "BD": Asia, "TR": Asia, "SA": Asia, "AE": Asia, "QA": Asia,
	"IL": Asia, "IR": Asia, "IQ": Asia, "KZ": Asia, "UZ": Asia,
	"CA": NorthAmerica, "MX": NorthAmerica,
	"BR": SouthAmerica, "AR": SouthAmerica, "CO": SouthAmerica, "PE": SouthAmerica,
	"CL": SouthAmerica, "VE": SouthAmerica, "EC": SouthAmerica, "UY": SouthAmerica,
	"ZA": Africa, "EG": Africa, "NG": Africa, "KE": Africa, "ET": Africa, "GH": Africa, "MA": Africa,
	"DZ": Africa, "TN": Africa, "SZ": Africa, "SN": Africa, "AO": Africa, "ZW": Africa, "ZM": Africa,
	"BW": Africa, "MZ": Africa, "RW": Africa,
	"AU": Oceania, "NZ": Oceania, "FJ": Oceania,
}

// Continent returns the continent group for a flag code.
func Continent(code string) string {
	if code == "" {
		return OtherContinent
	}
	code = strings.ToUpper(code)
	if strings.HasPrefix(code, "US_") || code == "USA" || code == "US" {
		return NorthAmerica
	}
	if c, ok := continents[code]; ok {
		return c
	}
	return OtherContinent
}
