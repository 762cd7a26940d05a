package query

import (
	"fmt"
	"regexp"
	"strings"

	"datachat/svcerr"
)

// The admission gate is two independent checks: the leading keyword must
// be SELECT, and separately the statement must not start with a denylisted
// mutating keyword. Either check alone would already reject, so a bug in
// one still leaves the other standing.
var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)

	forbiddenRe = regexp.MustCompile(`(?i)^\s*(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|REPLACE|ATTACH|DETACH|PRAGMA|GRANT|REVOKE|SET)\b`)
)

// stripComments removes SQL comments so they cannot hide the leading
// keyword from either check.
func stripComments(sqlText string) string {
	sqlText = lineCommentRe.ReplaceAllString(sqlText, "")
	sqlText = blockCommentRe.ReplaceAllString(sqlText, "")
	return strings.TrimSpace(sqlText)
}

// Validate rejects any statement that is not a plain read-only SELECT.
// It never contacts the engine.
func Validate(sqlText string) error {
	clean := stripComments(sqlText)
	if clean == "" {
		return svcerr.Validation("SQL 语句不能为空")
	}

	if !strings.HasPrefix(strings.ToUpper(clean), "SELECT") {
		return fmt.Errorf("%w: 仅允许 SELECT 查询语句", svcerr.ErrForbiddenStatement)
	}
	if forbiddenRe.MatchString(clean) {
		return fmt.Errorf("%w: 不允许执行写操作语句", svcerr.ErrForbiddenStatement)
	}
	return nil
}
