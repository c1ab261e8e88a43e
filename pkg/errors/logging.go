package errors

import (
	"go.uber.org/zap"
)

// LogError 는 에러를 코드와 함께 구조화된 로그로 기록합니다.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields,
		zap.Error(err),
		zap.String("error_code", CodeOf(err)))

	logger.Error(msg, append(allFields, fields...)...)
}
