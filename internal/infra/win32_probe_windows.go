//go:build windows

package infra

import (
	"context"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procGetLastInputInfo     = user32.NewProc("GetLastInputInfo")
	procGetTickCount         = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// Win32Probe implements domain.WindowProbe and domain.IdleDetector with user32.
type Win32Probe struct {
	pm domain.ProcessManager
}

func newWin32Probe(pm domain.ProcessManager) (*Win32Probe, error) {
	if err := procGetLastInputInfo.Find(); err != nil {
		return nil, err
	}
	return &Win32Probe{pm: pm}, nil
}

// ActiveWindow returns the foreground window's process and title.
func (p *Win32Probe) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return nil, nil // locked workstation or secure desktop
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return nil, err
	}
	exe, err := p.pm.Name(int(pid))
	if err != nil {
		return nil, nil // process exited between calls
	}

	return &domain.WindowInfo{
		AppName:     windowsAppName(exe),
		WindowTitle: windowText(hwnd),
		PID:         int(pid),
	}, nil
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

// BrowserURL is not available without UI Automation.
func (p *Win32Probe) BrowserURL(ctx context.Context, app string) (string, error) {
	return "", nil
}

// IdleTime returns time since the last keyboard or mouse input.
func (p *Win32Probe) IdleTime(ctx context.Context) (time.Duration, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	ok, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ok == 0 {
		return 0, err
	}
	now, _, _ := procGetTickCount.Call()
	// Tick counts wrap every ~49.7 days; uint32 subtraction handles it.
	return time.Duration(uint32(now)-info.dwTime) * time.Millisecond, nil
}

var (
	_ domain.WindowProbe  = (*Win32Probe)(nil)
	_ domain.IdleDetector = (*Win32Probe)(nil)
)
