package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	baseError := errors.New("test error")
	err := &Error{
		Err:  baseError,
		Type: ErrorTypePrivate,
	}
	assert.Equal(t, err.Error(), baseError.Error())
	assert.Equal(t, map[string]any{"error": baseError.Error()}, err.JSON())

	assert.Equal(t, err.SetType(ErrorTypePublic), err)
	assert.Equal(t, ErrorTypePublic, err.Type)

	assert.Equal(t, err.SetMeta("some data"), err)
	assert.Equal(t, map[string]any{
		"error": baseError.Error(),
		"meta":  "some data",
	}, err.JSON())

	err.SetMeta(map[string]any{
		"error":  "custom error",
		"status": 200,
	})
	assert.Equal(t, map[string]any{
		"error":  "custom error",
		"status": 200,
	}, err.JSON())

	type customError struct {
		status string
	}
	err.SetMeta(customError{status: "200"})
	assert.Equal(t, customError{status: "200"}, err.JSON())
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(ErrInvalidStatus, ErrorTypeValidation, "状态码 %d", 999)
	assert.True(t, errors.Is(err, ErrInvalidStatus))
	assert.True(t, Is(err, ErrInvalidStatus))
	assert.False(t, Is(err, ErrLocked))
	assert.Equal(t, "未收录的 HTTP 状态码: 状态码 999", err.Error())
	assert.True(t, err.IsType(ErrorTypeValidation))

	var target *Error
	assert.True(t, As(error(err), &target))
	assert.Equal(t, ErrorTypeValidation, target.Type)
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "validation", ErrorTypeValidation.String())
	assert.Equal(t, "subcall", ErrorTypeSubCall.String())
	assert.Equal(t, "init|chain", (ErrorTypeInit | ErrorTypeChain).String())
	assert.Equal(t, "ErrorType(0)", ErrorType(0).String())
}

func TestErrorChain(t *testing.T) {
	errs := ErrorChain{
		{Err: errors.New("first"), Type: ErrorTypeValidation},
		{Err: errors.New("second"), Type: ErrorTypeValidation, Meta: "some data"},
		{Err: errors.New("third"), Type: ErrorTypeChain, Meta: map[string]any{"status": "500"}},
	}
	assert.Equal(t, errs, errs.ByType(ErrorTypeAny))
	assert.Equal(t, "third", errs.Last().Error())
	assert.Equal(t, []string{"first", "second", "third"}, errs.Errors())
	assert.Equal(t, []string{"third"}, errs.ByType(ErrorTypeChain).Errors())
	assert.Equal(t, []string{"first", "second"}, errs.ByType(ErrorTypeValidation).Errors())
	assert.Equal(t, []string{"first", "second", "third"}, errs.ByType(ErrorTypeValidation|ErrorTypeChain).Errors())
	assert.Equal(t, "", errs.ByType(ErrorTypeSubCall).String())
	assert.Equal(t, `Error #01: first
Error #02: second
     Meta: some data
Error #03: third
     Meta: map[status:500]
`, errs.String())
	assert.Equal(t, []any{
		map[string]any{"error": "first"},
		map[string]any{"error": "second", "meta": "some data"},
		map[string]any{"error": "third", "status": "500"},
	}, errs.JSON())

	var empty ErrorChain
	assert.Nil(t, empty.Last())
	assert.Nil(t, empty.JSON())
	assert.Nil(t, empty.Errors())
}
