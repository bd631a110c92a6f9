package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

func colorizeStatus(status string, success, degraded, colorize bool) string {
	if !colorize {
		return status
	}
	switch {
	case !success:
		return ansiRed + status + ansiReset
	case degraded:
		return ansiYellow + status + ansiReset
	default:
		return ansiGreen + status + ansiReset
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
