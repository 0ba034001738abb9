package discovery

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

var testPattern = Pattern{
	Contains: []string{"language_server", "antigravity"},
	Token:    regexp.MustCompile(`--csrf_token[=\s]+([a-zA-Z0-9-]+)`),
	PortHint: regexp.MustCompile(`--server_port[=\s]+(\d+)`),
}

type fakeProcesses struct {
	procs []Process
	err   error
	calls int
}

func (f *fakeProcesses) List(context.Context) ([]Process, error) {
	f.calls++
	return f.procs, f.err
}

type fakePorts map[int][]int

func (f fakePorts) ListeningPorts(_ context.Context, pid int) ([]int, error) {
	return f[pid], nil
}

func TestFindMatches(t *testing.T) {
	procs := []Process{
		{PID: 10, CmdLine: "/Applications/Antigravity.app/language_server_macos --csrf_token abc-123 --server_port 42100"},
		{PID: 10, CmdLine: "/Applications/Antigravity.app/language_server_macos --csrf_token duplicate"},
		{PID: 11, CmdLine: "/opt/antigravity/language_server_linux_x64 --csrf_token=def456"},
		{PID: 12, CmdLine: "/usr/bin/language_server --csrf_token other"},
		{PID: 13, CmdLine: "/opt/antigravity/language_server_linux_x64 --no-token"},
		{PID: 13, CmdLine: "/opt/antigravity/language_server_linux_x64 --csrf_token late"},
	}

	got := FindMatches(procs, testPattern)
	want := []Match{
		{PID: 10, Token: "abc-123", PortHint: 42100},
		{PID: 11, Token: "def456"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindMatches = %+v, want %+v", got, want)
	}
}

func TestCandidates_HintFirstDeduplicated(t *testing.T) {
	tests := []struct {
		name      string
		hint      int
		listening []int
		want      []int
	}{
		{"hint and ports", 42100, []int{51000, 42100, 51001, 51000}, []int{42100, 51000, 51001}},
		{"no hint", 0, []int{51000, 51001}, []int{51000, 51001}},
		{"hint only", 42100, nil, []int{42100}},
		{"nothing", 0, nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Candidates(tt.hint, tt.listening); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates(%d, %v) = %v, want %v", tt.hint, tt.listening, got, tt.want)
			}
		})
	}
}

func TestProbe_SecureThenPlainStopsAtFirstSuccess(t *testing.T) {
	var attempts []string
	ep, err := Probe(context.Background(), []int{1, 2, 3}, func(_ context.Context, e Endpoint) error {
		attempts = append(attempts, e.BaseURL())
		if e.Port == 2 && e.Scheme == "http" {
			return nil
		}
		return errors.New("refused")
	})
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if ep != (Endpoint{Scheme: "http", Port: 2}) {
		t.Errorf("endpoint = %+v", ep)
	}
	want := []string{"https://127.0.0.1:1", "http://127.0.0.1:1", "https://127.0.0.1:2", "http://127.0.0.1:2"}
	if !reflect.DeepEqual(attempts, want) {
		t.Errorf("attempts = %v, want %v", attempts, want)
	}
}

func TestProbe_ReportsLastError(t *testing.T) {
	_, err := Probe(context.Background(), []int{1, 2}, func(_ context.Context, e Endpoint) error {
		return errors.New("failed on " + e.BaseURL())
	})
	if core.KindOf(err) != core.KindDiscoveryFailed {
		t.Errorf("KindOf = %q, want discovery_failed", core.KindOf(err))
	}
	if err == nil || !regexp.MustCompile(`failed on http://127\.0\.0\.1:2$`).MatchString(err.Error()) {
		t.Errorf("err = %v, want the last attempt's error", err)
	}
}

func TestProbe_EmptyCandidates(t *testing.T) {
	_, err := Probe(context.Background(), nil, func(context.Context, Endpoint) error { return nil })
	if core.KindOf(err) != core.KindDiscoveryFailed {
		t.Errorf("KindOf = %q, want discovery_failed", core.KindOf(err))
	}
}

func TestDiscoverer_CachesScanWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	procs := &fakeProcesses{procs: []Process{
		{PID: 10, CmdLine: "antigravity/language_server --csrf_token tok --server_port 42100"},
	}}
	d := NewDiscoverer(testPattern, procs, fakePorts{10: {51000}}, 30*time.Second, clock)

	first, err := d.Targets(context.Background())
	if err != nil {
		t.Fatalf("Targets() error: %v", err)
	}
	now = now.Add(10 * time.Second)
	second, _ := d.Targets(context.Background())

	if procs.calls != 1 {
		t.Errorf("process list enumerated %d times, want 1", procs.calls)
	}
	if &first[0] != &second[0] {
		t.Error("cached call returned a different list")
	}
	if !reflect.DeepEqual(first[0].Ports, []int{42100, 51000}) {
		t.Errorf("ports = %v", first[0].Ports)
	}

	now = now.Add(31 * time.Second)
	d.Targets(context.Background())
	if procs.calls != 2 {
		t.Errorf("process list enumerated %d times after expiry, want 2", procs.calls)
	}
}

func TestDiscoverer_ListFailure(t *testing.T) {
	d := NewDiscoverer(testPattern, &fakeProcesses{err: errors.New("ps: not found")}, nil, 0, nil)
	if _, err := d.Targets(context.Background()); core.KindOf(err) != core.KindDiscoveryFailed {
		t.Errorf("KindOf = %q, want discovery_failed", core.KindOf(err))
	}
}

func TestParsePS(t *testing.T) {
	out := `  101 /usr/lib/systemd/systemd --user
  202 /opt/antigravity/language_server_linux_x64 --csrf_token abc --server_port 42100
bogus line
`
	got := parsePS(out)
	want := []Process{
		{PID: 101, CmdLine: "/usr/lib/systemd/systemd --user"},
		{PID: 202, CmdLine: "/opt/antigravity/language_server_linux_x64 --csrf_token abc --server_port 42100"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parsePS = %+v, want %+v", got, want)
	}
}

func TestParseWindowsProcesses(t *testing.T) {
	many, err := parseWindowsProcesses(`[{"ProcessId":4,"CommandLine":null},{"ProcessId":880,"CommandLine":"C:\\ag\\language_server_windows_x64.exe --csrf_token abc"}]`)
	if err != nil {
		t.Fatalf("parseWindowsProcesses error: %v", err)
	}
	if len(many) != 1 || many[0].PID != 880 {
		t.Errorf("parsed %+v", many)
	}

	one, err := parseWindowsProcesses(`{"ProcessId":12,"CommandLine":"x.exe"}`)
	if err != nil || len(one) != 1 || one[0].PID != 12 {
		t.Errorf("single object parsed as %+v, %v", one, err)
	}
}

func TestParseLSOFPorts(t *testing.T) {
	out := "p202\nf12\nn127.0.0.1:42100\nf13\nn[::1]:42101\nf14\nn*:bogus\n"
	if got := parseLSOFPorts(out); !reflect.DeepEqual(got, []int{42100, 42101}) {
		t.Errorf("parseLSOFPorts = %v", got)
	}
}

func TestParseNetstat(t *testing.T) {
	out := "Active Connections\r\n\r\n  Proto  Local Address          Foreign Address        State           PID\r\n" +
		"  TCP    127.0.0.1:42100        0.0.0.0:0              LISTENING       880\r\n" +
		"  TCP    127.0.0.1:42101        0.0.0.0:0              LISTENING       881\r\n" +
		"  TCP    127.0.0.1:50000        127.0.0.1:42100        ESTABLISHED     880\r\n" +
		"  TCP    [::1]:42102            [::]:0                 LISTENING       880\r\n"
	if got := parseNetstat(out, 880); !reflect.DeepEqual(got, []int{42100, 42102}) {
		t.Errorf("parseNetstat = %v", got)
	}
}

func TestSystem_UsesPlatformTools(t *testing.T) {
	var calls []string
	s := &System{GOOS: "linux", Run: func(_ context.Context, name string, args ...string) (string, error) {
		calls = append(calls, name)
		if name == "lsof" {
			return "p1\nn127.0.0.1:9000", nil
		}
		return "1 antigravity language_server --csrf_token x", nil
	}}
	procs, err := s.List(context.Background())
	if err != nil || len(procs) != 1 {
		t.Fatalf("List = %+v, %v", procs, err)
	}
	ports, _ := s.ListeningPorts(context.Background(), 1)
	if !reflect.DeepEqual(ports, []int{9000}) {
		t.Errorf("ports = %v", ports)
	}
	if !reflect.DeepEqual(calls, []string{"ps", "lsof"}) {
		t.Errorf("commands = %v", calls)
	}
}
