package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/kopakredit/custimport/model"
)

// headerAliases maps normalized header names to customer field keys.
// Grown from the column names branch staff actually upload.
var headerAliases = map[string]string{
	// first_name
	"firstname": "first_name",
	"fname":     "first_name",
	"givenname": "first_name",
	"forename":  "first_name",

	// last_name
	"lastname":   "last_name",
	"surname":    "last_name",
	"familyname": "last_name",
	"lname":      "last_name",

	// phone_number
	"phone":        "phone_number",
	"phonenumber":  "phone_number",
	"phoneno":      "phone_number",
	"mobile":       "phone_number",
	"mobilenumber": "phone_number",
	"msisdn":       "phone_number",
	"telephone":    "phone_number",
	"simu":         "phone_number",

	// id_number
	"idnumber":   "id_number",
	"idno":       "id_number",
	"nationalid": "id_number",
	"id":         "id_number",

	// date_of_birth
	"dateofbirth": "date_of_birth",
	"dob":         "date_of_birth",
	"birthdate":   "date_of_birth",
	"birthday":    "date_of_birth",

	// gender
	"gender": "gender",
	"sex":    "gender",

	// physical_address
	"physicaladdress": "physical_address",
	"address":         "physical_address",
	"residence":       "physical_address",
	"location":        "physical_address",

	// county
	"county": "county",

	// email
	"email":        "email",
	"emailaddress": "email",
	"mail":         "email",

	// occupation
	"occupation": "occupation",
	"job":        "occupation",
	"profession": "occupation",

	// monthly_income
	"monthlyincome": "monthly_income",
	"income":        "monthly_income",
	"salary":        "monthly_income",

	// next_of_kin_name
	"nextofkin":     "next_of_kin_name",
	"nextofkinname": "next_of_kin_name",
	"kinname":       "next_of_kin_name",

	// next_of_kin_phone
	"nextofkinphone": "next_of_kin_phone",
	"kinphone":       "next_of_kin_phone",
}

// headerSubstrings drives the fuzzy pass. Order matters: more
// specific substrings come before generic ones (nextofkinphone before
// phone, idnumber before id).
var headerSubstrings = []struct {
	Substring string
	Field     string
}{
	{"nextofkinphone", "next_of_kin_phone"},
	{"kinphone", "next_of_kin_phone"},
	{"nextofkin", "next_of_kin_name"},
	{"firstname", "first_name"},
	{"givenname", "first_name"},
	{"lastname", "last_name"},
	{"surname", "last_name"},
	{"phone", "phone_number"},
	{"mobile", "phone_number"},
	{"msisdn", "phone_number"},
	{"idnumber", "id_number"},
	{"nationalid", "id_number"},
	{"dateofbirth", "date_of_birth"},
	{"birth", "date_of_birth"},
	{"dob", "date_of_birth"},
	{"gender", "gender"},
	{"address", "physical_address"},
	{"residence", "physical_address"},
	{"county", "county"},
	{"email", "email"},
	{"mail", "email"},
	{"occupation", "occupation"},
	{"income", "monthly_income"},
	{"salary", "monthly_income"},
}

// SuggestMapping proposes a field-to-column mapping from the file's
// header names: exact alias match first, then a substring pass. Each
// field and each column is used at most once. The suggestion is
// advisory; the operator confirms or adjusts it during the map stage.
func SuggestMapping(headers []string) map[string]string {
	suggestion := make(map[string]string)
	usedFields := make(map[string]bool)

	for _, header := range headers {
		normalized := normalizeHeader(header)
		if normalized == "" {
			continue
		}

		if field, ok := headerAliases[normalized]; ok && !usedFields[field] {
			suggestion[field] = header
			usedFields[field] = true
			continue
		}

		for _, hs := range headerSubstrings {
			if strings.Contains(normalized, hs.Substring) && !usedFields[hs.Field] {
				suggestion[hs.Field] = header
				usedFields[hs.Field] = true
				break
			}
		}
	}

	// Drop anything that is not a catalog field. Protects against
	// alias-table entries going stale when the schema changes.
	for field := range suggestion {
		if _, ok := model.FieldByKey(field); !ok {
			delete(suggestion, field)
		}
	}

	return suggestion
}

// normalizeHeader lowercases a header, strips diacritics, and removes
// whitespace, underscores and hyphens.
func normalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = stripDiacritics(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// stripDiacritics decomposes to NFD and drops combining marks, so
// "Téléphone" normalizes the same as "Telephone".
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
