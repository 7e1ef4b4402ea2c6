// Package logs implements the launcher's log manager: bounded in-memory
// retention per service, on-disk log file tailing, and line normalization.
package logs

import (
	"regexp"
	"strings"
)

// ansiPattern matches ANSI escape sequences (colors, cursor movement).
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// sgrArtifactPattern matches bracketed SGR fragments that lost their escape
// prefix somewhere between the child process and the log file.
var sgrArtifactPattern = regexp.MustCompile(`\[[0-9;]+m`)

// prefixedPattern matches lines that already carry the HH:MM:SS stream
// prefix this package writes.
var prefixedPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[(OUT|ERR)\] `)

// levelPatterns are the fixed patterns GetLogs filters against.
var levelPatterns = map[string]*regexp.Regexp{
	"ERROR":    regexp.MustCompile(`(?i)\[err\]|\[error\]|\berror\b`),
	"WARNING":  regexp.MustCompile(`(?i)\bwarn(ing)?\b`),
	"DEBUG":    regexp.MustCompile(`(?i)\bdebug\b`),
	"INFO":     regexp.MustCompile(`(?i)\binfo\b`),
	"CRITICAL": regexp.MustCompile(`(?i)\bcritical\b|\bfatal\b`),
}

// errorMarkerPattern detects error-tagged lines while tailing.
var errorMarkerPattern = regexp.MustCompile(`\[ERR\]|\[ERROR\]`)

// CleanLine strips ANSI escape sequences and leftover SGR artifacts and
// trims trailing carriage returns. The result may be empty; empty lines are
// discarded by callers.
func CleanLine(line string) string {
	line = ansiPattern.ReplaceAllString(line, "")
	line = sgrArtifactPattern.ReplaceAllString(line, "")
	return strings.TrimRight(line, "\r\n")
}

// isPrefixed reports whether a line already carries the timestamp/stream
// prefix, which is the case for every line this package persisted itself.
func isPrefixed(line string) bool {
	return prefixedPattern.MatchString(line)
}

// matchesLevel reports whether a line matches a level filter. Unknown
// levels match nothing.
func matchesLevel(line, level string) bool {
	pattern, ok := levelPatterns[strings.ToUpper(level)]
	if !ok {
		return false
	}
	return pattern.MatchString(line)
}

// isErrorLine reports whether a tailed line carries an error marker.
func isErrorLine(line string) bool {
	return errorMarkerPattern.MatchString(line)
}
