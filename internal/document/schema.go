// SPDX-License-Identifier: MPL-2.0

package document

import (
	_ "embed"
	"errors"
	"fmt"

	"mb-cli/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var documentSchema string

// Validate checks the root build document against the #Document schema.
// External documents referenced through file:// are not validated.
//
// Concrete(false) is used because values may still hold @{{ }} tokens and
// most fields are optional.
func Validate(doc *Document) error {
	if _, ok := doc.Mapping(); !ok {
		return &issue.ConfigurationError{
			Resource: doc.Path(),
			Message:  "the build document must be a mapping at the top level",
		}
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(documentSchema, cue.Filename("schema.cue"))
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile document schema: %w", schemaValue.Err())
	}

	data := ctx.Encode(doc.Root())
	if data.Err() != nil {
		return issue.WrapConfiguration(data.Err(), doc.Path(), "failed to encode document for validation")
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Document"))
	unified := schema.Unify(data)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return &issue.ConfigurationError{
			Resource: doc.Path(),
			Message:  "document does not match the expected structure",
			Cause:    errors.New(cueerrors.Details(err, nil)),
		}
	}

	return nil
}
