package security

import (
	"fmt"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	sqlutil "github.com/mratomo/graphrag-engine/pkg/sql"
)

// CheckResult is the outcome of a pre-execution security check: the
// statement's normalized text (trailing semicolon stripped) and its
// classified permission bucket.
type CheckResult struct {
	NormalizedSQL string
	Class         StatementClass
}

// CheckQuery validates, classifies, and authorizes a SQL statement before
// execute_query is allowed to run it, per §4.2's Security component:
//  1. reject multiple statements,
//  2. screen bound parameter values for injection patterns,
//  3. classify the statement read/write/administrative,
//  4. reject if that class is not in permittedClasses.
func CheckQuery(statement string, params map[string]any, permittedClasses []string) (*CheckResult, error) {
	validation := sqlutil.ValidateAndNormalize(statement)
	if validation.Error != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid query", validation.Error)
	}
	if validation.NormalizedSQL == "" {
		return nil, apperrors.Validation("query must not be empty")
	}

	if injections := sqlutil.CheckAllParameters(params); len(injections) > 0 {
		return nil, apperrors.Validation("parameter %q failed injection screening", injections[0].ParamName)
	}

	class := Classify(validation.NormalizedSQL)
	if !classPermitted(class, permittedClasses) {
		return nil, apperrors.New(apperrors.KindValidation,
			fmt.Sprintf("statement classified as %q, which is not in the agent's permitted set", class))
	}

	return &CheckResult{NormalizedSQL: validation.NormalizedSQL, Class: class}, nil
}

func classPermitted(class StatementClass, permitted []string) bool {
	for _, p := range permitted {
		if StatementClass(p) == class {
			return true
		}
	}
	return false
}
