// Package failure defines the terminal failure taxonomy of the query pipeline.
// Every pipeline run ends in exactly one reply; when the run fails, the failure
// kind decides what the user is told. None of these kinds is retried.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindSchemaUnavailable Kind = "schema_unavailable"
	KindGenerationFailed  Kind = "generation_failed"
	KindPolicyRejected    Kind = "policy_rejected"
	KindExecutionTimeout  Kind = "execution_timeout"
	KindExecutionError    Kind = "execution_error"
	KindConnectionLost    Kind = "connection_lost"
	KindUnauthorized      Kind = "unauthorized"
)

// Failure is a classified pipeline failure. Detail is internal context for
// logs; it must never reach the user verbatim because it can carry driver
// error text with connection details.
type Failure struct {
	Kind   Kind
	Detail string
	cause  error
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.cause
}

func New(kind Kind, detail string) *Failure {
	return &Failure{Kind: kind, Detail: detail}
}

func Newf(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error) *Failure {
	if err == nil {
		return &Failure{Kind: kind}
	}
	return &Failure{Kind: kind, Detail: err.Error(), cause: err}
}

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// As returns the Failure carried by err, or nil.
func As(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}
