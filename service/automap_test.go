package service

import (
	"reflect"
	"testing"
)

func TestSuggestMappingExactAliases(t *testing.T) {
	headers := []string{"First Name", "Surname", "Phone", "ID Number", "DOB", "Gender", "Address", "County"}

	got := SuggestMapping(headers)

	want := map[string]string{
		"first_name":       "First Name",
		"last_name":        "Surname",
		"phone_number":     "Phone",
		"id_number":        "ID Number",
		"date_of_birth":    "DOB",
		"gender":           "Gender",
		"physical_address": "Address",
		"county":           "County",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSuggestMappingHeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		field  string
	}{
		{"prefixed first name", "customer_first_name", "first_name"},
		{"suffixed kin phone", "Next of Kin Phone No", "next_of_kin_phone"},
		{"income with unit", "Monthly Income (KES)", "monthly_income"},
		{"national id", "National ID", "id_number"},
		{"birth date words", "Date Of Birth", "date_of_birth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestMapping([]string{tt.header})
			if got[tt.field] != tt.header {
				t.Errorf("Expected %q mapped to %s, got %v", tt.header, tt.field, got)
			}
		})
	}
}

func TestSuggestMappingKinPhoneBeforePhone(t *testing.T) {
	// A kin phone column must not steal the phone_number slot.
	got := SuggestMapping([]string{"Kin Phone", "Phone"})

	if got["next_of_kin_phone"] != "Kin Phone" {
		t.Errorf("Expected Kin Phone mapped to next_of_kin_phone, got %v", got)
	}
	if got["phone_number"] != "Phone" {
		t.Errorf("Expected Phone mapped to phone_number, got %v", got)
	}
}

func TestSuggestMappingDiacritics(t *testing.T) {
	got := SuggestMapping([]string{"Téléphone"})

	if got["phone_number"] != "Téléphone" {
		t.Errorf("Expected accented header to map to phone_number, got %v", got)
	}
}

func TestSuggestMappingFieldUsedOnce(t *testing.T) {
	// Both headers normalize to phone aliases; only the first wins.
	got := SuggestMapping([]string{"Phone", "Mobile"})

	if len(got) != 1 {
		t.Fatalf("Expected 1 suggestion, got %v", got)
	}
	if got["phone_number"] != "Phone" {
		t.Errorf("Expected the first matching column to win, got %v", got)
	}
}

func TestSuggestMappingUnknownHeader(t *testing.T) {
	got := SuggestMapping([]string{"Branch Code", "Loan Officer"})

	if len(got) != 0 {
		t.Errorf("Expected no suggestions for unknown headers, got %v", got)
	}
}

func TestSuggestMappingBlankHeaders(t *testing.T) {
	got := SuggestMapping([]string{"", "   "})

	if len(got) != 0 {
		t.Errorf("Expected no suggestions for blank headers, got %v", got)
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" First_Name ", "firstname"},
		{"PHONE-NUMBER", "phonenumber"},
		{"Téléphone", "telephone"},
		{"date of birth", "dateofbirth"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeHeader(tt.in); got != tt.want {
			t.Errorf("normalizeHeader(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
