package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError は推定器や前処理の内部で発生したpanicを回復したエラーです。
// サーバーでは500として扱われ、スタックはログにのみ出力されます。
type PanicError struct {
	Operation  string
	PanicValue interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scigo: panic in %s: %v", e.Operation, e.PanicValue)
}

// MarshalZerologObject はzerologのイベントにpanic情報とスタックを追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.PanicValue)).
		Str("stacktrace", e.StackTrace)
}

// NewPanicError は現在のgoroutineのスタックを記録したPanicErrorを返します。
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		Operation:  operation,
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
	}
}

// Recover はdeferで使い、panicを*errに代入されるPanicErrorに変換します。
//
//	func (lgb *LGBMClassifier) Fit(X mat.Matrix, y []int) (err error) {
//	    defer errors.Recover(&err, "LGBMClassifier.Fit")
//	    ...
//	}
//
// *errに既にエラーがある場合は両方を結合します。
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.CombineErrors(panicErr, *err)
		return
	}
	*err = panicErr
}

// SafeExecute はfnを実行し、内部のpanicをPanicErrorとして返します。
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
