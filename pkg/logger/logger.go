package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Logger wraps a logrus entry carrying the service field
type Logger struct {
	*logrus.Entry
}

// NewLogger creates a new logger instance writing JSON to stdout
func NewLogger(serviceName string) *Logger {
	return New(serviceName, os.Stdout, os.Getenv("LOG_LEVEL"))
}

// New creates a logger with an explicit output and level name
func New(serviceName string, out io.Writer, level string) *Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: log.WithField("service", serviceName)}
}

// WithRequestID adds request ID to logger
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// WithAttachmentID adds attachment ID to logger
func (l *Logger) WithAttachmentID(attachmentID uint64) *logrus.Entry {
	return l.WithField("attachment_id", attachmentID)
}

// UnaryServerInterceptor returns a new unary server interceptor for logging
func UnaryServerInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		logger.WithFields(logrus.Fields{
			"method": info.FullMethod,
			"type":   "unary",
		}).Info("gRPC request")

		resp, err := handler(ctx, req)

		if err != nil {
			logger.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"error":  err.Error(),
			}).Error("gRPC request failed")
		} else {
			logger.WithField("method", info.FullMethod).Debug("gRPC request completed")
		}

		return resp, err
	}
}
