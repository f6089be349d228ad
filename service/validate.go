package service

import (
	"fmt"

	"github.com/kopakredit/custimport/model"
)

// ValidateRows checks the parsed rows against the given column
// mapping and returns every problem found. It is pure and
// deterministic: the same rows and mapping always produce the same
// errors in the same order, and running it has no side effects.
//
// Row numbers use the file's display numbering, where the header is
// row 1 and the first data row is row 2. Row 0 marks problems with
// the mapping itself rather than a data row.
//
// Pass order: unmapped required fields first, then required-but-empty
// cells row by row, then the format rule table.
func ValidateRows(rows []map[string]string, mapping map[string]string) []model.RowError {
	var errs []model.RowError

	required := model.RequiredFields()
	for _, f := range required {
		if mapping[f.Key] == "" {
			errs = append(errs, model.RowError{
				Row:     0,
				Message: fmt.Sprintf("Required field %q is not mapped", f.Label),
				Source:  model.ErrorSourceValidation,
			})
		}
	}

	for i, row := range rows {
		for _, f := range required {
			col := mapping[f.Key]
			if col == "" {
				continue
			}
			if row[col] == "" {
				errs = append(errs, model.RowError{
					Row:     i + 2,
					Message: fmt.Sprintf("Row %d: %q is required but empty", i+2, f.Label),
					Source:  model.ErrorSourceValidation,
				})
			}
		}
	}

	for _, rule := range formatRules {
		col := mapping[rule.Field]
		if col == "" {
			continue
		}
		for i, row := range rows {
			v := row[col]
			if v == "" {
				continue
			}
			if !rule.Valid(v) {
				errs = append(errs, model.RowError{
					Row:     i + 2,
					Message: rule.Message(v),
					Source:  model.ErrorSourceValidation,
				})
			}
		}
	}

	return errs
}
