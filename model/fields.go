package model

// FieldSpec describes one field of the customer schema that a CSV
// column can be mapped onto.
type FieldSpec struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// fieldCatalog is the customer schema in display order: the eight
// required fields first, then the optional ones.
var fieldCatalog = []FieldSpec{
	{Key: "first_name", Label: "First Name", Required: true},
	{Key: "last_name", Label: "Last Name", Required: true},
	{Key: "phone_number", Label: "Phone Number", Required: true},
	{Key: "id_number", Label: "ID Number", Required: true},
	{Key: "date_of_birth", Label: "Date of Birth", Required: true},
	{Key: "gender", Label: "Gender", Required: true},
	{Key: "physical_address", Label: "Physical Address", Required: true},
	{Key: "county", Label: "County", Required: true},
	{Key: "email", Label: "Email", Required: false},
	{Key: "occupation", Label: "Occupation", Required: false},
	{Key: "monthly_income", Label: "Monthly Income", Required: false},
	{Key: "next_of_kin_name", Label: "Next of Kin Name", Required: false},
	{Key: "next_of_kin_phone", Label: "Next of Kin Phone", Required: false},
}

// Fields returns the full field catalog in display order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldCatalog))
	copy(out, fieldCatalog)
	return out
}

// RequiredFields returns only the required fields, in catalog order.
func RequiredFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range fieldCatalog {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// FieldByKey looks up a field spec by its key.
func FieldByKey(key string) (FieldSpec, bool) {
	for _, f := range fieldCatalog {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}
