package logwriter

import (
	"bufio"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Lines returns an io.Writer that reads line-by-line from the writer and logs
// each line at the given level with a source field. Use for libraries that only
// know how to write text (grpclog, subprocesses) so their output lands in zap.
func Lines(logger *zap.Logger, level zapcore.Level, source string) io.Writer {
	pr, pw := io.Pipe()
	logger = logger.With(zap.String("source", source))

	go func() {
		defer func() { _ = pr.Close() }()

		s := bufio.NewScanner(pr)
		for s.Scan() {
			if ce := logger.Check(level, s.Text()); ce != nil {
				ce.Write()
			}
		}
	}()

	return pw
}
