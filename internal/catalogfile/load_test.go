package catalogfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nerrad567/devsel/internal/device"
)

const yamlCatalog = `
device:
  x1:
    system:
      plat: Arduino
      mark: 1
      desc: Bench controller
      arch: avr
      path: /opt/x1
      work: /var/lib/x1
      logs: /var/log/x1
    comm:
      serial:
        port: /dev/ttyUSB0
        speed: 115200
    startup:
      - reset
      - home
  x2:
    enable: false
    system:
      plat: Mega
`

const jsonCatalog = `{
  "device": {
    "x1": {
      "system": {"plat": "Arduino", "mark": 1, "desc": "Bench controller",
                 "arch": "avr", "path": "/opt/x1", "work": "/var/lib/x1", "logs": "/var/log/x1"},
      "comm": {"serial": {"port": "/dev/ttyUSB0"}}
    }
  }
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "devices.yaml", yamlCatalog},
		{"yml", "devices.yml", yamlCatalog},
		{"json", "devices.json", jsonCatalog},
		{"upper case json", "DEVICES.JSON", jsonCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			c := device.NewCatalog(src)
			if outcome, err := c.Select("x1"); err != nil || outcome != device.OutcomeSelected {
				t.Fatalf("Select(x1) = %v, %v", outcome, err)
			}
			sys := c.System()
			if sys.Platform != "Arduino" || sys.Mark != "1" || sys.Logsdir != "/var/log/x1" {
				t.Errorf("System() = %+v", sys)
			}
			if c.Comm()["serial"] == nil {
				t.Error("Comm() lost the serial section")
			}
		})
	}
}

func TestLoad_YAMLSequencesAndFlags(t *testing.T) {
	src, err := Load(writeFile(t, "devices.yaml", yamlCatalog))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := device.NewCatalog(src)
	c.Select("x1")
	if got := c.Startup(); !reflect.DeepEqual(got, device.Sequence{"reset", "home"}) {
		t.Errorf("Startup() = %v", got)
	}

	c.Select("x2")
	if c.IsEnabled() {
		t.Error("IsEnabled() = true for x2, want false")
	}
}

func TestParse_YAMLEnableSpellings(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "yes", want: true},
		{value: "on", want: true},
		{value: "1", want: true},
		{value: "true", want: true},
		{value: "false", want: false},
		{value: "no", want: false},
		{value: "off", want: false},
		{value: "0", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			doc := "device:\n  x1:\n    enable: " + tt.value + "\n    system: {plat: Uno, mark: m, desc: d, arch: avr, path: /p, work: /w, logs: /l}\n"
			src, err := Parse([]byte(doc), false)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			c := device.NewCatalog(src)
			if _, err := c.Select("x1"); err != nil {
				t.Fatalf("Select(x1) error = %v", err)
			}
			if got := c.IsEnabled(); got != tt.want {
				t.Errorf("enable: %s -> IsEnabled() = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParse_NumericIdentifiers(t *testing.T) {
	src, err := Parse([]byte("device:\n  1:\n    enable: true\n  two:\n    enable: false\n"), false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	ids := device.NewCatalog(src).IDs()
	if !reflect.DeepEqual(ids, []string{"1", "two"}) {
		t.Errorf("IDs() = %v, want [1 two]", ids)
	}
}

func TestParse_NestedNonStringKeys(t *testing.T) {
	src, err := Parse([]byte("device:\n  x1:\n    object:\n      1: led\n      2: fan\n"), false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	c := device.NewCatalog(src)
	c.Select("x1")
	if got := c.Objects(); got["1"] != "led" || got["2"] != "fan" {
		t.Errorf("Objects() = %v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"no device key", "a.yaml", "other: {}\n", ErrNoDeviceSection},
		{"device is a list", "b.yaml", "device:\n  - x1\n", ErrNoDeviceSection},
		{"scalar root", "c.yaml", "just text\n", ErrNoDeviceSection},
		{"empty file", "d.yaml", "", ErrNoDeviceSection},
		{"bad yaml", "e.yaml", "device: [\n", ErrParseFailed},
		{"bad json", "f.json", "{\"device\":", ErrParseFailed},
		{"colliding ids", "g.yaml", "device:\n  1:\n    enable: true\n  \"1\":\n    enable: false\n", ErrParseFailed},
		{"colliding nested keys", "h.yaml", "device:\n  x1:\n    object:\n      2: led\n      \"2\": fan\n", ErrParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
}
