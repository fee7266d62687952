package plugin

import "errors"

var (
	ErrOverflow        = errors.New("value too small or too large for int32")
	ErrPrecisionLoss   = errors.New("precision loss")
	ErrDivideByZero    = errors.New("division by zero")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownPlugin   = errors.New("unknown plugin")
)

// Error codes reported by Code.
const (
	CodeOverflow        = "overflow"
	CodePrecisionLoss   = "precision_loss"
	CodeDivideByZero    = "divide_by_zero"
	CodeInvalidArgument = "invalid_argument"
	CodeUnknownPlugin   = "unknown_plugin"
	CodeInternal        = "internal"
)

// Code maps an error returned by this package to a stable string code.
// A nil error yields "".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOverflow):
		return CodeOverflow
	case errors.Is(err, ErrPrecisionLoss):
		return CodePrecisionLoss
	case errors.Is(err, ErrDivideByZero):
		return CodeDivideByZero
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrUnknownPlugin):
		return CodeUnknownPlugin
	default:
		return CodeInternal
	}
}
