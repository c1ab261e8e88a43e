// File: pkg/logger/grpc_logger.go
package logger

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transientCodes 는 클라이언트 측 원인이거나 일시적인 실패로 보고 Warn 으로 기록하는 코드입니다.
var transientCodes = map[codes.Code]bool{
	codes.Canceled:          true,
	codes.DeadlineExceeded:  true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
	codes.Unavailable:       true,
}

// NewGrpcUnaryServerInterceptor 는 단일 요청 gRPC 메서드의 로깅 인터셉터를 생성합니다.
func NewGrpcUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logGrpcCall(logger, "gRPC 요청", info.FullMethod, err, zap.Duration("grpc.duration", time.Since(start)))
		return resp, err
	}
}

// NewGrpcStreamServerInterceptor 는 스트리밍 gRPC 메서드의 로깅 인터셉터를 생성합니다.
func NewGrpcStreamServerInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		wrapped := &countingServerStream{ServerStream: ss}
		err := handler(srv, wrapped)
		logGrpcCall(logger, "gRPC 스트림", info.FullMethod, err,
			zap.Int("grpc.recv_count", wrapped.recvCount),
			zap.Int("grpc.send_count", wrapped.sendCount),
			zap.Duration("grpc.duration", time.Since(start)),
		)
		return err
	}
}

func logGrpcCall(logger *zap.Logger, msg, fullMethod string, err error, extra ...zap.Field) {
	code := status.Code(err)
	fields := append([]zap.Field{
		zap.String("grpc.service", path.Dir(fullMethod)[1:]),
		zap.String("grpc.method", path.Base(fullMethod)),
		zap.String("grpc.code", code.String()),
	}, extra...)

	switch {
	case code == codes.OK:
		logger.Debug(msg+" 완료", fields...)
	case transientCodes[code]:
		logger.Warn(msg+" 실패", append(fields, zap.Error(err))...)
	default:
		logger.Error(msg+" 오류", append(fields, zap.Error(err))...)
	}
}

// countingServerStream 은 ServerStream 을 감싸 송수신 메시지 수를 셉니다.
type countingServerStream struct {
	grpc.ServerStream
	recvCount int
	sendCount int
}

func (w *countingServerStream) RecvMsg(m interface{}) error {
	err := w.ServerStream.RecvMsg(m)
	if err == nil {
		w.recvCount++
	}
	return err
}

func (w *countingServerStream) SendMsg(m interface{}) error {
	err := w.ServerStream.SendMsg(m)
	if err == nil {
		w.sendCount++
	}
	return err
}
