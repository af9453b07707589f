package apperror

import (
	"errors"
	"fmt"
)

// ValidationError 表示请求在发出任何外部调用之前就已不合法。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ServiceError 包装外部 AI / TTS flow 的失败。
type ServiceError struct {
	Flow string
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s flow failed: %v", e.Flow, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Service wraps err as a ServiceError unless it already is one.
func Service(flow string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return &ServiceError{Flow: flow, Err: err}
}

// PersistenceError 表示持久化读写失败或读到了损坏的数据。
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps a storage failure for key.
func Persistence(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Key: key, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsService(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
