package connection

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/audit"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/services/security"
	sqlutil "github.com/mratomo/graphrag-engine/pkg/sql"
)

// QueryResult is returned by ExecuteQuery: the bounded row set plus the
// elapsed wall time, matching spec.md §4.2's "(result, elapsed_ms)" shape.
type QueryResult struct {
	*datasource.QueryExecutionResult
	ElapsedMs int64
}

// ExecuteQuery validates statement against the Security component, rewrites
// its {{name}} placeholders to dialect-positional parameters, and runs it
// against the connection's driver bounded by timeout (or Registry's
// defaultTimeout if timeout is zero). permittedClasses is the agent's
// connection-assignment permission set. clientIP is forwarded to the
// security auditor, when one is attached via SetAuditor; pass "" if unknown.
func (r *Registry) ExecuteQuery(ctx context.Context, id uuid.UUID, statement string, params map[string]any, timeout time.Duration, permittedClasses []string, clientIP string) (*QueryResult, error) {
	conn, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if injections := sqlutil.CheckAllParameters(params); len(injections) > 0 {
		first := injections[0]
		r.auditInjectionAttempt(ctx, id, first, clientIP)
		return nil, apperrors.Validation("parameter %q failed injection screening", first.ParamName)
	}

	checked, err := security.CheckQuery(statement, params, permittedClasses)
	if err != nil {
		r.auditParameterValidation(ctx, id, err, clientIP)
		return nil, err
	}

	paramNames := sqlutil.ExtractParameters(checked.NormalizedSQL)
	paramDefs := make([]models.QueryParameter, 0, len(paramNames))
	for _, name := range paramNames {
		paramDefs = append(paramDefs, models.QueryParameter{Name: name, Required: true})
	}
	positionalSQL, orderedValues, err := sqlutil.SubstituteParameters(checked.NormalizedSQL, paramDefs, params)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "substitute query parameters", err)
	}

	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	password, err := r.crypt.Decrypt(conn.EncryptedPassword)
	if err != nil {
		return nil, err
	}

	executor, err := r.adapters.NewQueryExecutor(queryCtx, registryType(conn.Type), connectionConfigMap(conn, password), uuid.Nil, conn.ID, "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnsupported, "open query executor", err)
	}
	defer executor.Close()

	start := time.Now()
	var result *datasource.QueryExecutionResult
	if len(orderedValues) > 0 {
		result, err = executor.ExecuteQueryWithParams(queryCtx, positionalSQL, orderedValues, datasource.MaxQueryLimit)
	} else {
		result, err = executor.ExecuteQuery(queryCtx, positionalSQL, datasource.MaxQueryLimit)
	}
	elapsed := time.Since(start)

	if checked.Class == security.ClassRead {
		if err == nil && r.auditor != nil {
			r.auditor.LogQueryExecution(ctx, id, id.String(), sqlKeyword(checked.NormalizedSQL), clientIP)
		}
	} else if r.auditor != nil {
		var rowsAffected int64
		if result != nil {
			rowsAffected = int64(result.RowCount)
		}
		r.auditor.LogModifyingQueryExecution(ctx, id, audit.ModifyingQueryDetails{
			QueryName:       sqlKeyword(checked.NormalizedSQL),
			SQLType:         strings.ToUpper(sqlKeyword(checked.NormalizedSQL)),
			SQL:             positionalSQL,
			Parameters:      params,
			RowsAffected:    rowsAffected,
			Success:         err == nil,
			ExecutionTimeMs: elapsed.Milliseconds(),
		}, clientIP)
	}

	if err != nil {
		if queryCtx.Err() == context.DeadlineExceeded {
			return nil, apperrors.Wrap(apperrors.KindTimeout, "query timed out", err)
		}
		return nil, apperrors.Wrap(apperrors.KindUpstream, "execute query", err)
	}

	return &QueryResult{QueryExecutionResult: result, ElapsedMs: elapsed.Milliseconds()}, nil
}

// sqlKeyword returns the normalized statement's leading keyword, used as a
// human-readable query name/type in audit events.
func sqlKeyword(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (r *Registry) auditInjectionAttempt(ctx context.Context, connID uuid.UUID, result *sqlutil.InjectionCheckResult, clientIP string) {
	if r.auditor == nil {
		return
	}
	paramValue, _ := result.ParamValue.(string)
	r.auditor.LogInjectionAttempt(ctx, connID, connID.String(), audit.SQLInjectionDetails{
		ParamName:   result.ParamName,
		ParamValue:  paramValue,
		Fingerprint: result.Fingerprint,
	}, clientIP)
}

func (r *Registry) auditParameterValidation(ctx context.Context, connID uuid.UUID, err error, clientIP string) {
	if r.auditor == nil {
		return
	}
	r.auditor.LogParameterValidation(ctx, connID, connID.String(), err.Error(), clientIP)
}
