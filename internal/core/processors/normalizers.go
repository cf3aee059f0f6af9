package processors

import (
	"strings"
	"unicode"
)

// IndianStates maps state and union territory names, and GST state code
// numbers, to two-letter state codes.
var IndianStates = map[string]string{
	"andaman and nicobar islands": "AN",
	"andhra pradesh":              "AP",
	"arunachal pradesh":           "AR",
	"assam":                       "AS",
	"bihar":                       "BR",
	"chandigarh":                  "CH",
	"chhattisgarh":                "CG",
	"delhi":                       "DL",
	"new delhi":                   "DL",
	"goa":                         "GA",
	"gujarat":                     "GJ",
	"haryana":                     "HR",
	"himachal pradesh":            "HP",
	"jammu and kashmir":           "JK",
	"jharkhand":                   "JH",
	"karnataka":                   "KA",
	"kerala":                      "KL",
	"ladakh":                      "LA",
	"lakshadweep":                 "LD",
	"madhya pradesh":              "MP",
	"maharashtra":                 "MH",
	"manipur":                     "MN",
	"meghalaya":                   "ML",
	"mizoram":                     "MZ",
	"nagaland":                    "NL",
	"odisha":                      "OD",
	"orissa":                      "OD",
	"puducherry":                  "PY",
	"pondicherry":                 "PY",
	"punjab":                      "PB",
	"rajasthan":                   "RJ",
	"sikkim":                      "SK",
	"tamil nadu":                  "TN",
	"telangana":                   "TS",
	"tripura":                     "TR",
	"uttar pradesh":               "UP",
	"uttarakhand":                 "UK",
	"west bengal":                 "WB",

	"dadra and nagar haveli and daman and diu": "DH",

	"01": "JK", "02": "HP", "03": "PB", "04": "CH", "05": "UK", "06": "HR",
	"07": "DL", "08": "RJ", "09": "UP", "10": "BR", "11": "SK", "12": "AR",
	"13": "NL", "14": "MN", "15": "MZ", "16": "TR", "17": "ML", "18": "AS",
	"19": "WB", "20": "JH", "21": "OD", "22": "CG", "23": "MP", "24": "GJ",
	"26": "DH", "27": "MH", "29": "KA", "30": "GA", "31": "LD", "32": "KL",
	"33": "TN", "34": "PY", "35": "AN", "36": "TS", "37": "AP", "38": "LA",
}

var stateCodes = func() map[string]bool {
	codes := make(map[string]bool, len(IndianStates))
	for _, code := range IndianStates {
		codes[code] = true
	}
	return codes
}()

// NormalizeState converts a state name or GST state number to its
// two-letter code. Unrecognized values are returned trimmed.
func NormalizeState(s string) string {
	s = strings.TrimSpace(s)
	key := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "&", "and"))), " ")

	if code, ok := IndianStates[key]; ok {
		return code
	}
	if upper := strings.ToUpper(s); stateCodes[upper] {
		return upper
	}
	return s
}

const maxSKULength = 64

// NormalizeSKU upper-cases a SKU and joins whitespace runs with "-".
func NormalizeSKU(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), "-"))
}

// DeriveSKU builds a SKU from a product name for rows that have none:
// letters and digits are kept, every other run becomes one "-".
func DeriveSKU(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}

	sku := []rune(strings.TrimRight(sb.String(), "-"))
	if len(sku) > maxSKULength {
		sku = sku[:maxSKULength]
	}
	return strings.TrimRight(string(sku), "-")
}

// NormalizeLower trims and lower-cases enum-like values.
func NormalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
