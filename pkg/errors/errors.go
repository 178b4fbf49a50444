package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Sentinel errors for the import/query taxonomy. Typed errors below unwrap
// to these so callers can branch with errors.Is while still receiving the
// offending identifiers.
var (
	ErrAlreadyImported  = errors.New("filing already imported")
	ErrInvalidFact      = errors.New("invalid fact")
	ErrUnresolvedEntity = errors.New("unresolved entity identifier")
	ErrNotImportable    = errors.New("filing metadata insufficient for import")
	ErrUnsupportedKind  = errors.New("unsupported fact kind")
	ErrNotFound         = errors.New("not found")
)

// AlreadyImportedError signals that a filing with the same entity and source
// checksum is already in the store. The input document does not change
// between attempts, so the caller must not retry.
type AlreadyImportedError struct {
	EntityID string
	Checksum string
}

func (e *AlreadyImportedError) Error() string {
	return fmt.Sprintf("filing already imported for entity %s (checksum %s)", e.EntityID, e.Checksum)
}

func (e *AlreadyImportedError) Unwrap() error { return ErrAlreadyImported }

func (e *AlreadyImportedError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).
		AddMetaValue("entity_id", e.EntityID).
		AddMetaValue("checksum", e.Checksum)
}

// InvalidFactError carries the concept and context reference of the fact
// that failed validation.
type InvalidFactError struct {
	Concept    string
	ContextRef string
	Reason     string
}

func (e *InvalidFactError) Error() string {
	msg := fmt.Sprintf("invalid fact %s", e.Concept)
	if e.ContextRef != "" {
		msg += fmt.Sprintf(" (context %s)", e.ContextRef)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidFactError) Unwrap() error { return ErrInvalidFact }

func (e *InvalidFactError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).
		AddMetaValue("concept", e.Concept).
		AddMetaValue("context_ref", e.ContextRef)
}

// UnresolvedEntityError signals a parsed graph whose registrant identifier
// could not be resolved to an entity.
type UnresolvedEntityError struct {
	Scheme     string
	Identifier string
}

func (e *UnresolvedEntityError) Error() string {
	return fmt.Sprintf("unresolved entity identifier %q (scheme %q)", e.Identifier, e.Scheme)
}

func (e *UnresolvedEntityError) Unwrap() error { return ErrUnresolvedEntity }

func (e *UnresolvedEntityError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).
		AddMetaValue("scheme", e.Scheme).
		AddMetaValue("identifier", e.Identifier)
}

// NotImportableError signals a filing that discloses too little metadata
// for an unattended import. The missing pieces can be supplied as operator
// overrides on a retry.
type NotImportableError struct {
	MissingName   bool
	MissingPeriod bool
}

func (e *NotImportableError) Error() string {
	var missing []string
	if e.MissingName {
		missing = append(missing, "entity name")
	}
	if e.MissingPeriod {
		missing = append(missing, "fiscal period")
	}
	return fmt.Sprintf("filing is not importable: missing %s", strings.Join(missing, ", "))
}

func (e *NotImportableError) Unwrap() error { return ErrNotImportable }

func (e *NotImportableError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).
		AddMetaValue("missing_name", e.MissingName).
		AddMetaValue("missing_period", e.MissingPeriod)
}

// UnsupportedKindError signals projector misuse: textual results route to
// the document viewer, not the chart projector.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported kind %q for projection", e.Kind)
}

func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedKind }

func (e *UnsupportedKindError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).
		AddMetaValue("kind", e.Kind)
}

// ToHTTPError maps any error from the core to an HTTP error for the routes
// layer. Errors that know their own mapping are used as-is.
func ToHTTPError(err error) *httperror.HTTPError {
	var mapped interface{ ToHTTPError() *httperror.HTTPError }
	if errors.As(err, &mapped) {
		return mapped.ToHTTPError()
	}
	if errors.Is(err, ErrNotFound) {
		return httperror.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}
