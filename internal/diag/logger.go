package diag

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions: 日志器构造参数。
type LogOptions struct {
	Level string // debug|info|warn|error，默认 info
	// Dir 非空时写入该目录下的轮转文件（10 MiB）；否则写 stderr。
	Dir string
	// Writer 覆盖输出目标（测试用），优先于 Dir。
	Writer io.Writer
}

// Logger 为结构化日志器：单行 JSON，字段约定 corr_id/comp/stage/code/dur_ms/count/batch_id。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// NewLogger 按 corrID 与选项初始化；corrID 作为每条日志的固定字段。
func NewLogger(corrID string, opts LogOptions) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)

	l := &Logger{}
	var ws zapcore.WriteSyncer
	switch {
	case opts.Writer != nil:
		ws = zapcore.AddSync(opts.Writer)
	case strings.TrimSpace(opts.Dir) != "":
		l.sink = NewRotatingFile(opts.Dir, 10*1024*1024)
		ws = l.sink
	default:
		ws = zapcore.Lock(os.Stderr)
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, zap.NewAtomicLevelAt(parseLevel(opts.Level)))
	l.z = zap.New(core).With(zap.String("corr_id", corrID))
	return l
}

// Nop 返回丢弃一切输出的日志器。
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func parseLevel(s string) zapcore.Level {
	lv, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lv
}

// Zap 返回底层 zap 日志器，供插件直接使用。
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Start 记录 start 事件；返回计时器用于 Finish/Fail。
func (l *Logger) Start(comp, msg string, fields ...zap.Field) *Timer {
	l.Zap().Info(msg, append([]zap.Field{zap.String("comp", comp), zap.String("stage", "start")}, fields...)...)
	return &Timer{l: l, comp: comp, fields: fields, t0: time.Now()}
}

// StartBatch 记录带 batch_id 的 start。
func (l *Logger) StartBatch(comp, msg string, batch int, fields ...zap.Field) *Timer {
	return l.Start(comp, msg, append([]zap.Field{BatchID(batch)}, fields...)...)
}

// Error 记录 error 事件；code 由 Classify 推导。
func (l *Logger) Error(comp string, err error, msg string, fields ...zap.Field) {
	base := []zap.Field{zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", string(Classify(err))), zap.Error(err)}
	l.Zap().Error(msg, append(base, fields...)...)
	IncError(comp, string(Classify(err)))
}

// Warn 记录告警事件。
func (l *Logger) Warn(comp, msg string, fields ...zap.Field) {
	l.Zap().Warn(msg, append([]zap.Field{zap.String("comp", comp)}, fields...)...)
}

// Debug 记录调试事件（仅 level=debug 生效）。
func (l *Logger) Debug(comp, msg string, fields ...zap.Field) {
	l.Zap().Debug(msg, append([]zap.Field{zap.String("comp", comp)}, fields...)...)
}

// Sync 刷新缓冲。
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}

// Close 刷新并关闭轮转文件（若有）。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// BatchID 为 batch_id 字段（十进制字符串）。
func BatchID(i int) zap.Field { return zap.String("batch_id", strconv.Itoa(i)) }

// Count 为 count 字段。
func Count(n int) zap.Field { return zap.Int("count", n) }

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fields []zap.Field
	t0     time.Time
}

// Finish 记录 finish 与 count，并上报耗时指标。
func (t *Timer) Finish(msg string, count int) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	fs := append([]zap.Field{zap.String("comp", t.comp), zap.String("stage", "finish"), zap.Int64("dur_ms", dur), Count(count)}, t.fields...)
	t.l.Zap().Info(msg, fs...)
	IncOp(t.comp, "finish", "success")
	ObserveDuration(t.comp, "finish", dur)
}

// Fail 记录带耗时的 error 事件。
func (t *Timer) Fail(err error, msg string) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	t.l.Error(t.comp, err, msg, append([]zap.Field{zap.Int64("dur_ms", dur)}, t.fields...)...)
	IncOp(t.comp, "finish", "error")
}
