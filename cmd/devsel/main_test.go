package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/devsel/internal/device"
)

const catalogTemplate = `
device:
  alpha:
    system:
      plat: Arduino
      mark: "1"
      desc: Bench controller
      arch: avr
      path: /opt/alpha
      work: /var/lib/alpha
      logs: /var/log/alpha
    comm:
      tcp:
        host: 127.0.0.1
        port: %d
        timeout: 500ms
  beta:
    system:
      plat: Raspberry
      mark: "4"
      desc: Gateway
      arch: arm64
      path: /opt/beta
      work: /var/lib/beta
      logs: /var/log/beta
    comm:
      tcp:
        host: 127.0.0.1
        port: %d
        timeout: 500ms
  broken:
    system:
      plat: Unknown
  parked:
    enable: false
    system:
      plat: Arduino
      mark: "2"
      desc: Spare
      arch: avr
      path: /opt/parked
      work: /var/lib/parked
      logs: /var/log/parked
    comm:
      tcp:
        host: 127.0.0.1
        port: 1
`

// fixture writes a config and catalog under a temp dir. alpha answers on a
// live listener; beta points at a closed port.
func fixture(t *testing.T, withDatabase bool) string {
	t.Helper()
	t.Setenv(configEnv, "")
	dir := t.TempDir()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closedPort := closed.Addr().(*net.TCPAddr).Port
	closed.Close()

	catalogPath := filepath.Join(dir, "devices.yaml")
	catalog := fmt.Sprintf(catalogTemplate, ln.Addr().(*net.TCPAddr).Port, closedPort)
	if err := os.WriteFile(catalogPath, []byte(catalog), 0600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cfg := fmt.Sprintf(`
catalog:
  path: %s
database:
  enabled: %t
  path: %s
api:
  enabled: false
logging:
  level: error
`, catalogPath, withDatabase, filepath.Join(dir, "devsel.db"))

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(cfg), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out, errOut bytes.Buffer
	err = run(ctx, args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestRun_MissingExplicitConfig(t *testing.T) {
	t.Setenv(configEnv, "")
	_, _, err := execute(t, "--config", "/nonexistent/path/config.yaml", "list")
	if err == nil {
		t.Fatal("run() should fail with a missing explicit config")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

func TestRun_ConfigFromEnv(t *testing.T) {
	configPath := fixture(t, false)
	t.Setenv(configEnv, configPath)

	stdout, _, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(stdout, "alpha") {
		t.Errorf("list output missing alpha:\n%s", stdout)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("detection:\n  probe_timeout: 0s\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "--config", path, "list")
	if err == nil {
		t.Fatal("run() should fail validation")
	}
}

func TestRun_MissingCatalog(t *testing.T) {
	t.Setenv(configEnv, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "catalog:\n  path: /nonexistent/devices.yaml\ndatabase:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "--config", path, "list")
	if err == nil || !strings.Contains(err.Error(), "loading catalog") {
		t.Fatalf("err = %v, want loading catalog", err)
	}
}

func TestList(t *testing.T) {
	configPath := fixture(t, false)

	stdout, _, err := execute(t, "-c", configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header plus 4:\n%s", len(lines), stdout)
	}
	want := map[string]string{
		"alpha":  "true",
		"beta":   "true",
		"broken": "true",
		"parked": "false",
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			t.Fatalf("unexpected line %q", line)
		}
		if want[fields[0]] != fields[1] {
			t.Errorf("%s enabled = %s, want %s", fields[0], fields[1], want[fields[0]])
		}
	}
}

func TestShow(t *testing.T) {
	configPath := fixture(t, false)

	tests := []struct {
		name       string
		args       []string
		wantErr    bool
		wantStdout []string
		wantStderr string
	}{
		{
			name:       "valid device",
			args:       []string{"show", "alpha"},
			wantStdout: []string{"ID: alpha", "Name: Arduino Mark 1", "Description: Bench controller", "Enabled: true"},
		},
		{
			name:       "with record",
			args:       []string{"show", "alpha", "--record"},
			wantStdout: []string{"ID: alpha", "plat: Arduino", "port:"},
		},
		{
			name:       "disabled device",
			args:       []string{"show", "parked"},
			wantStdout: []string{"ID: parked", "Enabled: false"},
		},
		{
			name:       "unknown is a warning",
			args:       []string{"show", "ghost"},
			wantStderr: "ghost",
		},
		{
			name:       "unknown strict",
			args:       []string{"show", "ghost", "--strict"},
			wantErr:    true,
			wantStderr: "ghost",
		},
		{
			name:       "invalid device renders blank fields",
			args:       []string{"show", "broken"},
			wantStdout: []string{"ID: broken", "Name:  Mark ", "Description: \n"},
			wantStderr: "warning",
		},
		{
			name:    "invalid strict",
			args:    []string{"show", "broken", "--strict"},
			wantErr: true,
		},
		{
			name:    "empty id",
			args:    []string{"show", ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", configPath}, tt.args...)
			stdout, stderr, err := execute(t, args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantStdout {
				if !strings.Contains(stdout, want) {
					t.Errorf("stdout missing %q:\n%s", want, stdout)
				}
			}
			if tt.wantStderr != "" && !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, stderr)
			}
		})
	}
}

func TestDetect_JSON(t *testing.T) {
	configPath := fixture(t, false)

	stdout, _, err := execute(t, "--config", configPath, "detect", "--json")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	var result device.Result
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, stdout)
	}

	if id, ok := result.Selection.ID(); !ok || id != "alpha" {
		t.Errorf("selection = %s, want selected(alpha)", result.Selection)
	}
	if len(result.Matches) != 1 || result.Matches[0] != "alpha" {
		t.Errorf("matches = %v, want [alpha]", result.Matches)
	}
	if len(result.Probes) != 4 {
		t.Fatalf("probes = %d, want 4", len(result.Probes))
	}

	byID := make(map[string]device.ProbeReport)
	for _, p := range result.Probes {
		byID[p.ID] = p
	}
	if p := byID["parked"]; p.Attempted {
		t.Error("disabled device was probed")
	}
	if p := byID["beta"]; p.Live || p.Error == "" {
		t.Errorf("beta = %+v, want failed probe", p)
	}
	if p := byID["broken"]; p.Live {
		t.Error("device without comm reported live")
	}
}

func TestDetect_Table(t *testing.T) {
	configPath := fixture(t, false)

	stdout, _, err := execute(t, "--config", configPath, "detect", "--strict")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !strings.Contains(stdout, "selection: selected(alpha) (matches: 1)") {
		t.Errorf("missing summary:\n%s", stdout)
	}
}

func TestHistory(t *testing.T) {
	configPath := fixture(t, true)

	for i := 0; i < 2; i++ {
		if _, _, err := execute(t, "--config", configPath, "detect"); err != nil {
			t.Fatalf("detect: %v", err)
		}
	}

	stdout, _, err := execute(t, "--config", configPath, "history", "-n", "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus 1:\n%s", len(lines), stdout)
	}
	if !strings.Contains(lines[1], "selected(alpha)") {
		t.Errorf("row = %q, want selected(alpha)", lines[1])
	}
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name     string
		database bool
		args     []string
	}{
		{"database disabled", false, []string{"history"}},
		{"zero limit", true, []string{"history", "--limit", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := fixture(t, tt.database)
			args := append([]string{"--config", configPath}, tt.args...)
			if _, _, err := execute(t, args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDB_Lifecycle(t *testing.T) {
	configPath := fixture(t, true)
	db := func(args ...string) string {
		t.Helper()
		stdout, _, err := execute(t, append([]string{"--config", configPath, "db"}, args...)...)
		if err != nil {
			t.Fatalf("db %v: %v", args, err)
		}
		return stdout
	}

	if out := db("status"); !strings.Contains(out, "pending") {
		t.Errorf("fresh database should have pending migrations:\n%s", out)
	}
	db("migrate")
	if out := db("status"); strings.Contains(out, "pending") || !strings.Contains(out, "applied") {
		t.Errorf("after migrate:\n%s", out)
	}
	if out := db("rollback"); !strings.Contains(out, "rolled back") {
		t.Errorf("rollback output:\n%s", out)
	}
	if out := db("rollback"); !strings.Contains(out, "nothing to roll back") {
		t.Errorf("second rollback output:\n%s", out)
	}
}

func TestDB_RequiresDatabase(t *testing.T) {
	configPath := fixture(t, false)
	if _, _, err := execute(t, "--config", configPath, "db", "status"); err == nil {
		t.Error("db status should fail with the database disabled")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	configPath := fixture(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var out, errOut bytes.Buffer
		done <- run(ctx, []string{"--config", configPath, "serve"}, &out, &errOut)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServe_ReloadsWatchedCatalog(t *testing.T) {
	configPath := fixture(t, false)
	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	cfg := strings.Replace(string(raw), "catalog:\n", "catalog:\n  watch: true\n  debounce: 10ms\n", 1)
	if err := os.WriteFile(configPath, []byte(cfg), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	catalogPath := filepath.Join(filepath.Dir(configPath), "devices.yaml")
	catalog, err := os.ReadFile(catalogPath)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var out, errOut bytes.Buffer
		done <- run(ctx, []string{"--config", configPath, "serve"}, &out, &errOut)
	}()

	// Rewrites land while serve is still starting up and after it settles.
	for i := 0; i < 5; i++ {
		time.Sleep(40 * time.Millisecond)
		if err := os.WriteFile(catalogPath, catalog, 0600); err != nil {
			t.Fatalf("rewrite catalog: %v", err)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
