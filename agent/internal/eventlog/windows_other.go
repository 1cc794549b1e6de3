//go:build !windows

package eventlog

import "errors"

// ErrPlatformUnsupported is returned by NewWindowsSource on other platforms.
var ErrPlatformUnsupported = errors.New("windows event log is only available on windows; use the file source")

func NewWindowsSource(server, logName string) (Source, error) {
	return nil, ErrPlatformUnsupported
}
