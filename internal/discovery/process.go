package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

type Process struct {
	PID     int
	CmdLine string
}

type ProcessLister interface {
	List(ctx context.Context) ([]Process, error)
}

type PortLister interface {
	ListeningPorts(ctx context.Context, pid int) ([]int, error)
}

// System enumerates processes and sockets with the host's own tools:
// ps and lsof on unix, PowerShell and netstat on windows.
type System struct {
	GOOS string
	Run  func(ctx context.Context, name string, args ...string) (string, error)
}

func NewSystem() *System {
	return &System{GOOS: runtime.GOOS, Run: RunCommand}
}

func (s *System) List(ctx context.Context) ([]Process, error) {
	if s.GOOS == "windows" {
		out, err := s.Run(ctx, "powershell", "-NoProfile", "-Command",
			"Get-CimInstance Win32_Process | Select-Object ProcessId,CommandLine | ConvertTo-Json -Compress")
		if err != nil {
			return nil, err
		}
		return parseWindowsProcesses(out)
	}
	out, err := s.Run(ctx, "ps", "-axww", "-o", "pid=,command=")
	if err != nil {
		return nil, err
	}
	return parsePS(out), nil
}

func (s *System) ListeningPorts(ctx context.Context, pid int) ([]int, error) {
	if s.GOOS == "windows" {
		out, err := s.Run(ctx, "netstat", "-ano", "-p", "TCP")
		if err != nil {
			return nil, err
		}
		return parseNetstat(out, pid), nil
	}
	out, err := s.Run(ctx, "lsof", "-nP", "-a", "-p", strconv.Itoa(pid), "-iTCP", "-sTCP:LISTEN", "-Fn")
	if err != nil && out == "" {
		// lsof exits 1 when the process has no matching sockets.
		return nil, nil
	}
	return parseLSOFPorts(out), nil
}

func parsePS(out string) []Process {
	var procs []Process
	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		pidText, cmd, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidText)
		if err != nil {
			continue
		}
		procs = append(procs, Process{PID: pid, CmdLine: strings.TrimSpace(cmd)})
	}
	return procs
}

type windowsProcess struct {
	ProcessID   int    `json:"ProcessId"`
	CommandLine string `json:"CommandLine"`
}

func parseWindowsProcesses(out string) ([]Process, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var rows []windowsProcess
	if strings.HasPrefix(out, "{") {
		var one windowsProcess
		if err := json.Unmarshal([]byte(out), &one); err != nil {
			return nil, fmt.Errorf("decoding process list: %w", err)
		}
		rows = append(rows, one)
	} else if err := json.Unmarshal([]byte(out), &rows); err != nil {
		return nil, fmt.Errorf("decoding process list: %w", err)
	}
	procs := make([]Process, 0, len(rows))
	for _, r := range rows {
		if r.CommandLine == "" {
			continue
		}
		procs = append(procs, Process{PID: r.ProcessID, CmdLine: r.CommandLine})
	}
	return procs, nil
}

// parseLSOFPorts reads `lsof -Fn` output, where socket names arrive on lines
// starting with 'n', e.g. "n127.0.0.1:42100" or "n[::1]:42100".
func parseLSOFPorts(out string) []int {
	var ports []int
	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimSpace(rawLine)
		if len(line) < 2 || line[0] != 'n' {
			continue
		}
		if port, ok := portFromAddr(line[1:]); ok {
			ports = append(ports, port)
		}
	}
	return ports
}

var netstatLine = regexp.MustCompile(`^\s*TCP\s+(\S+)\s+\S+\s+LISTENING\s+(\d+)\s*$`)

func parseNetstat(out string, pid int) []int {
	var ports []int
	for _, line := range strings.Split(out, "\n") {
		m := netstatLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		owner, err := strconv.Atoi(m[2])
		if err != nil || owner != pid {
			continue
		}
		if port, ok := portFromAddr(m[1]); ok {
			ports = append(ports, port)
		}
	}
	return ports
}

func portFromAddr(addr string) (int, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 || idx == len(addr)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimSpace(addr[idx+1:]))
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
