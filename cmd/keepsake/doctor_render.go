package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"keepsake/internal/preflight"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

const checkLabelWidth = 20

func renderCheckLine(result preflight.Result, colorize bool) string {
	status := "FAIL"
	color := ansiRed
	if result.Passed {
		status = "OK"
		color = ansiGreen
	}
	line := fmt.Sprintf("  %-*s [%s] %s", checkLabelWidth, result.Name+":", status, result.Detail)
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
