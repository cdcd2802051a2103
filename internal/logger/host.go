package logger

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// hostCore writes each entry as a single line to a sink, such as the
// host's DEBUG channel
type hostCore struct {
	zapcore.LevelEnabler
	enc  zapcore.Encoder
	sink func(string)
}

// NewHostCore returns a core that renders entries as "msg {fields}" and
// passes them to sink
func NewHostCore(sink func(string), enab zapcore.LevelEnabler) zapcore.Core {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		NameKey:          "logger",
		LineEnding:       "",
		ConsoleSeparator: " ",
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.LowercaseLevelEncoder,
	})
	return &hostCore{LevelEnabler: enab, enc: enc, sink: sink}
}

func (c *hostCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &hostCore{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), sink: c.sink}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *hostCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *hostCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	line := strings.ReplaceAll(strings.TrimRight(buf.String(), "\n"), "\n", " ")
	buf.Free()

	c.sink(line)
	return nil
}

func (c *hostCore) Sync() error {
	return nil
}
