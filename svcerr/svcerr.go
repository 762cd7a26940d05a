// Package svcerr defines the error taxonomy shared by all services.
//
// Sentinel errors classify failures so that transport layers can map them
// to user-facing responses with errors.Is, while ServiceError carries the
// service/operation context for logs.
package svcerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap them with fmt.Errorf("%w: ...") or check with
// errors.Is.
var (
	// ErrNotFound marks an unknown connection or session id.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a malformed request (missing field, bad range).
	ErrValidation = errors.New("validation error")
	// ErrForbiddenStatement marks SQL rejected by the read-only gate.
	ErrForbiddenStatement = errors.New("forbidden statement")
	// ErrExecution marks SQL the engine rejected during execution.
	ErrExecution = errors.New("sql execution error")
	// ErrConnectivity marks an unreachable database engine.
	ErrConnectivity = errors.New("connectivity error")
	// ErrUpstreamModel marks a failed or unusable model call.
	ErrUpstreamModel = errors.New("upstream model error")
)

// ServiceError 统一的服务错误类型
type ServiceError struct {
	Service   string // 服务名称
	Operation string // 操作名称
	Err       error  // 原始错误
}

// Error 返回格式化的错误信息：[Service.Operation] error message
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

// Unwrap 返回原始错误，支持 errors.Is/errors.As 链式查询
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Wrap 创建带服务上下文的错误。如果 err 为 nil，返回 nil。
func Wrap(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Operation: operation, Err: err}
}

// NotFound returns an ErrNotFound error describing the missing resource.
func NotFound(resource, id string) error {
	return fmt.Errorf("%w: %s '%s'", ErrNotFound, resource, id)
}

// Validation returns an ErrValidation error with the given reason.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
