package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ToHTTPStatus 는 에러 코드를 HTTP 상태 코드로 변환합니다.
func ToHTTPStatus(code string) int {
	httpStatus, _ := GetCodeMapping(code)
	return httpStatus
}

// ToHTTPError 는 에러를 echo HTTP 에러로 변환합니다.
// AppError 는 내부 원인을 노출하지 않도록 메시지만 사용합니다.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		return echo.NewHTTPError(ToHTTPStatus(appErr.Code()), appErr.Message())
	}

	var echoErr *echo.HTTPError
	if As(err, &echoErr) {
		return echoErr
	}

	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// FromHTTPError 는 echo HTTP 에러를 내부 에러로 변환합니다.
func FromHTTPError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		return err
	}

	var echoErr *echo.HTTPError
	if As(err, &echoErr) {
		msg, ok := echoErr.Message.(string)
		if !ok {
			msg = "HTTP error"
		}
		return NewAppError(httpStatusToCode(echoErr.Code), msg, nil)
	}

	return NewAppError(ErrInternal, err.Error(), err)
}

func httpStatusToCode(status int) string {
	for code, pair := range codeMapping {
		if pair.HTTPStatus == status {
			return code
		}
	}
	return ErrInternal
}
