package action

import (
	"errors"
	"fmt"

	"github.com/user/butler/internal/dialog"
)

// ErrSchemaViolation means the emitter was handed a slot set the dialog
// controller never reported ready. It is a programming error, never a user
// error.
var ErrSchemaViolation = errors.New("schema violation")

// SchemaViolation details an emission refused by the emitter.
type SchemaViolation struct {
	Intent dialog.IntentKind
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Intent, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", e.Intent, e.Field, e.Reason)
}

func (e *SchemaViolation) Unwrap() error { return ErrSchemaViolation }
