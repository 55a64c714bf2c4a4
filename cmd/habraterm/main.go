package main

import (
	"errors"
	"fmt"
	"os"

	"habraterm/internal/logger"
)

var log = logger.Named("cli")

// exitError 携带命令的退出码，由 main 转成进程退出码。
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	cmd := newRootCmd(&rootOptions{})
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	var code exitError
	if errors.As(err, &code) {
		os.Exit(code.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
