//go:build windows

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	eventlogSequentialRead = 0x0001
	eventlogBackwardsRead  = 0x0008

	defaultReadBuffer = 64 * 1024
)

var (
	modadvapi32 = windows.NewLazySystemDLL("advapi32.dll")

	procOpenEventLogW              = modadvapi32.NewProc("OpenEventLogW")
	procCloseEventLog              = modadvapi32.NewProc("CloseEventLog")
	procReadEventLogW              = modadvapi32.NewProc("ReadEventLogW")
	procGetNumberOfEventLogRecords = modadvapi32.NewProc("GetNumberOfEventLogRecords")
	procGetOldestEventLogRecord    = modadvapi32.NewProc("GetOldestEventLogRecord")
)

// WindowsSource reads a classic event log (e.g. "Security") through advapi32.
type WindowsSource struct {
	server  string
	logName string
}

// NewWindowsSource verifies that logName can be opened on server ("" for
// the local machine).
func NewWindowsSource(server, logName string) (Source, error) {
	h, err := openEventLog(server, logName)
	if err != nil {
		return nil, err
	}
	closeEventLog(h)
	return &WindowsSource{server: server, logName: logName}, nil
}

func openEventLog(server, logName string) (windows.Handle, error) {
	var serverPtr *uint16
	if server != "" {
		p, err := windows.UTF16PtrFromString(server)
		if err != nil {
			return 0, err
		}
		serverPtr = p
	}
	namePtr, err := windows.UTF16PtrFromString(logName)
	if err != nil {
		return 0, err
	}
	r, _, callErr := procOpenEventLogW.Call(uintptr(unsafe.Pointer(serverPtr)), uintptr(unsafe.Pointer(namePtr)))
	if r == 0 {
		return 0, fmt.Errorf("open event log %q: %w", logName, callErr)
	}
	return windows.Handle(r), nil
}

func closeEventLog(h windows.Handle) {
	_, _, _ = procCloseEventLog.Call(uintptr(h))
}

func (s *WindowsSource) Newest(ctx context.Context) (uint64, error) {
	h, err := openEventLog(s.server, s.logName)
	if err != nil {
		return 0, err
	}
	defer closeEventLog(h)

	var count, oldest uint32
	if r, _, callErr := procGetNumberOfEventLogRecords.Call(uintptr(h), uintptr(unsafe.Pointer(&count))); r == 0 {
		return 0, fmt.Errorf("count event log records: %w", callErr)
	}
	if count == 0 {
		return 0, nil
	}
	if r, _, callErr := procGetOldestEventLogRecord.Call(uintptr(h), uintptr(unsafe.Pointer(&oldest))); r == 0 {
		return 0, fmt.Errorf("oldest event log record: %w", callErr)
	}
	return uint64(oldest) + uint64(count) - 1, nil
}

// Backward opens a fresh handle so the sequential read starts at the newest record.
func (s *WindowsSource) Backward(ctx context.Context) (Cursor, error) {
	h, err := openEventLog(s.server, s.logName)
	if err != nil {
		return nil, err
	}
	return &windowsCursor{handle: h, buf: make([]byte, defaultReadBuffer)}, nil
}

func (s *WindowsSource) Close() error { return nil }

type windowsCursor struct {
	handle windows.Handle
	buf    []byte
}

func (c *windowsCursor) Next(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		var read, needed uint32
		r, _, callErr := procReadEventLogW.Call(
			uintptr(c.handle),
			eventlogSequentialRead|eventlogBackwardsRead,
			0,
			uintptr(unsafe.Pointer(&c.buf[0])),
			uintptr(len(c.buf)),
			uintptr(unsafe.Pointer(&read)),
			uintptr(unsafe.Pointer(&needed)),
		)
		if r != 0 {
			return parseEventLogRecords(c.buf[:read])
		}
		switch {
		case errors.Is(callErr, windows.ERROR_HANDLE_EOF):
			return nil, io.EOF
		case errors.Is(callErr, windows.ERROR_INSUFFICIENT_BUFFER):
			c.buf = make([]byte, needed)
		default:
			return nil, fmt.Errorf("read event log: %w", callErr)
		}
	}
}

func (c *windowsCursor) Close() error {
	closeEventLog(c.handle)
	return nil
}
