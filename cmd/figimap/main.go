package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"figimap/internal/diag"
)

// 退出码：0 成功；1 运行期失败；3 配置/参数错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	start := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")

	a := newApp(genCorrID(), stdin, stdout, stderr)
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		diag.IncOp("cli", "finish", "success")
		diag.ObserveDuration("cli", "finish", time.Since(start).Milliseconds())
		return exitOK
	}

	code := diag.Classify(err)
	a.logger().Error("cli", err, "first error")
	diag.IncOp("cli", "error", "error")
	if errors.Is(err, context.Canceled) {
		return exitRuntime
	}
	var ce *configError
	if errors.As(err, &ce) {
		fprintf(stderr, "配置错误: %v\n", ce.err)
		return exitConfig
	}
	fprintf(stderr, "运行失败 [%s]: %v\n", code, err)
	return exitRuntime
}

// configError 标记应以退出码 3 结束的配置/参数错误。
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func asConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func genCorrID() string { return uuid.NewString() }

// loadDotEnv 读取 .env 并注入进程环境；文件不存在时忽略，已存在的变量不覆盖。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
