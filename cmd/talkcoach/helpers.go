package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"talkcoach/internal/ledger"
)

var titleCaser = cases.Title(language.English)

// displayLabel turns stage and status identifiers into table labels,
// e.g. "transcription" becomes "Transcription".
func displayLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// stageProgress summarizes an artifact's ledger as "completed/total",
// flagging failures so list output surfaces stuck pipelines.
func stageProgress(artifact *ledger.Artifact) string {
	total := len(artifact.Stages)
	completed := 0
	failed := 0
	for _, state := range artifact.Stages {
		switch state.Status {
		case ledger.StatusCompleted:
			completed++
		case ledger.StatusFailed:
			failed++
		}
	}
	progress := fmt.Sprintf("%d/%d", completed, total)
	if failed > 0 {
		progress += fmt.Sprintf(" (%d failed)", failed)
	}
	return progress
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
