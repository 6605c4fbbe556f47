package infrastructure

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/pkg/logger"
	"go.uber.org/zap"
)

const progressPrefix = "[progress] "

// progressTemplate makes yt-dlp print one parseable line per progress tick
const progressTemplate = "download:" + progressPrefix +
	"%(progress.elapsed)s|%(progress._percent_str)s|%(progress._eta_str)s"

// YTDLPFetcher implements domain.Fetcher by running yt-dlp on a direct address
type YTDLPFetcher struct {
	config      *domain.DownloadConfig
	logsDir     string
	eventLogger *logger.MultiLogger // For structured events only (LogAppError)
}

// NewYTDLPFetcher creates a new yt-dlp fetcher
func NewYTDLPFetcher(config *domain.DownloadConfig, eventLogger *logger.MultiLogger) *YTDLPFetcher {
	return &YTDLPFetcher{
		config:      config,
		logsDir:     config.LogsDir(),
		eventLogger: eventLogger,
	}
}

// Args builds the yt-dlp argument list for a fetch
func (f *YTDLPFetcher) Args(address, output string) []string {
	// exec.Command passes args directly to the process, no shell quoting needed
	args := []string{
		"--newline",
		"--no-part",
		"--no-playlist",
		"--progress-template", progressTemplate,
		"-o", output,
	}
	if f.config.ExtraArgs != "" {
		args = append(args, strings.Fields(f.config.ExtraArgs)...)
	}
	return append(args, address)
}

// Fetch downloads address into output, reporting progress from yt-dlp's stdout
func (f *YTDLPFetcher) Fetch(ctx context.Context, address, output string, onProgress domain.ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(domain.ProgressStatus) {}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	downloadLog, err := f.openLogFile()
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer downloadLog.Close()

	args := f.Args(address, output)
	writeLogHeader(downloadLog, filepath.Base(output), ShellEscapeCommand(f.config.YTDLPBinary, args...))

	cmd := exec.CommandContext(ctx, f.config.YTDLPBinary, args...)
	cmd.Stderr = downloadLog
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		writeLogFooter(downloadLog, false, fmt.Sprintf("failed to start yt-dlp: %v", err))
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanProgress(stdout, downloadLog, onProgress)

	if err := cmd.Wait(); err != nil {
		writeLogFooter(downloadLog, false, fmt.Sprintf("yt-dlp failed: %v", err))
		f.eventLogger.LogAppError("yt-dlp failed",
			zap.String("output", output),
			zap.Error(err))
		return fmt.Errorf("yt-dlp failed: %w", err)
	}

	writeLogFooter(downloadLog, true, fmt.Sprintf("Downloaded: %s", output))
	return nil
}

// scanProgress forwards progress lines to onProgress and copies the rest to log
func scanProgress(r io.Reader, log io.Writer, onProgress domain.ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if status, ok := ParseProgressLine(line); ok {
			onProgress(status)
			continue
		}
		fmt.Fprintln(log, line)
	}
	// drain whatever is left so yt-dlp never blocks on a full pipe
	io.Copy(io.Discard, r)
}

// ParseProgressLine parses a line printed with progressTemplate.
// Lines without a numeric elapsed time are rejected.
func ParseProgressLine(line string) (domain.ProgressStatus, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), progressPrefix)
	if !ok {
		return domain.ProgressStatus{}, false
	}

	parts := strings.Split(rest, "|")
	if len(parts) != 3 {
		return domain.ProgressStatus{}, false
	}

	elapsed, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.ProgressStatus{}, false
	}

	return domain.ProgressStatus{
		Elapsed: elapsed,
		Percent: strings.TrimSpace(parts[1]),
		ETA:     strings.TrimSpace(parts[2]),
	}, true
}

// openLogFile opens the download log file for today
func (f *YTDLPFetcher) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(f.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	downloadPath := filepath.Join(f.logsDir, "download-"+dateStr+".log")
	return os.OpenFile(downloadPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the download start marker
func writeLogHeader(w io.Writer, id, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] Download: %s ===\n", timestamp, id)
	fmt.Fprintf(w, "$ %s\n", cmdLine)
}

// writeLogFooter writes the download end marker
func writeLogFooter(w io.Writer, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(w, "=== END ===\n\n")
}
