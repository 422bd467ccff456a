package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// "Key (field)=(value) already exists."
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table X" means a parent delete was blocked.
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table X" means a child insert named a missing parent.
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError translates database errors into AppErrors: pgx.ErrNoRows to
// NotFound, unique violations to Conflict, foreign key violations to
// ForeignKey, check and not-null violations to Validation, and context
// timeouts/cancellations to their codes. Errors it does not recognize pass
// through unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.CheckViolation:
		return mapColumnValidation(pgErr, "This field has an invalid value.",
			"Invalid data. Please check your input.")
	case pgerrcode.NotNullViolation:
		return mapColumnValidation(pgErr, "This field is required.",
			"Required field is missing. Please check your input.")
	default:
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
	}
}

// mapUniqueViolation names the duplicated field when it can be determined,
// trying ColumnName metadata, then the Detail message, then the constraint
// name.
func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	if field == "" {
		field = inferFieldFromConstraint(pgErr.ConstraintName)
	}

	return &AppError{
		Code:    ErrCodeConflict,
		Message: "This value already exists. Please choose a different one.",
		Field:   field,
		Cause:   pgErr,
	}
}

func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	var message string
	if pgErr.Detail != "" {
		if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "Cannot delete because this item is in use by " + mapTableToDomain(m[1]) + "."
		} else if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "Cannot complete operation because the referenced " +
				mapTableToDomain(m[1]) + " does not exist."
		}
	}
	if message == "" && pgErr.TableName != "" {
		message = "Cannot complete operation because this item is in use by " +
			mapTableToDomain(pgErr.TableName) + "."
	}
	if message == "" {
		message = inferForeignKeyMessage(pgErr.ConstraintName)
	}

	return Wrap(pgErr, ErrCodeForeignKey, message)
}

func mapColumnValidation(pgErr *pgconn.PgError, withField, withoutField string) error {
	if pgErr.ColumnName != "" {
		return &AppError{
			Code:    ErrCodeValidation,
			Message: withField,
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	}
	return Wrap(pgErr, ErrCodeValidation, withoutField)
}

// inferFieldFromConstraint extracts a field name from constraints following
// the "table_field_key" convention. Multi-column constraints ("t_a_b_key")
// and expression indexes ("t_lower_key") are ambiguous and yield "".
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if constraintName == "" || len(parts) != 3 {
		return ""
	}
	if isFunctionName(parts[1]) {
		return ""
	}
	return parts[1]
}

// mapTableToDomain turns a table name into the domain noun users see.
func mapTableToDomain(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))
	switch tableName {
	case "agents":
		return "Agent"
	case "rules":
		return "Rule"
	case "jobs":
		return "Job"
	}
	return titleWords(strings.ReplaceAll(tableName, "_", " "))
}

func titleWords(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		if len(word) > 0 && word[0] >= 'a' && word[0] <= 'z' {
			words[i] = string(word[0]-32) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

func inferForeignKeyMessage(constraintName string) string {
	constraintName = strings.ToLower(constraintName)
	switch {
	// agent before job: "jobs_agent_id_fkey" mentions both
	case strings.Contains(constraintName, "agent"):
		return "Cannot delete agent because it is in use by a Rule or Job."
	case strings.Contains(constraintName, "job"):
		return "Cannot delete because it is in use by a Job."
	case strings.Contains(constraintName, "rule"):
		return "Cannot delete because it is in use by a Rule."
	}
	return "Cannot complete operation because this item is in use."
}

// isFunctionName reports whether s is a SQL function commonly used in
// expression indexes, which must not be mistaken for a column name.
func isFunctionName(s string) bool {
	switch strings.ToLower(s) {
	case "lower", "upper", "trim", "ltrim", "rtrim",
		"md5", "sha1", "sha256", "encode", "decode":
		return true
	}
	return false
}
