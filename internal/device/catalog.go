package device

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is a view over a configuration source with a single current
// selection.
//
// Accessors never fail: a missing device, section or key reads as an empty
// container, which the session layer treats as "use defaults".
//
// Thread Safety:
//   - Catalog is NOT safe for concurrent use. Share it through a Detector,
//     whose Detect and Do methods serialise access.
type Catalog struct {
	src       Source
	selection Selection
	system    System
}

// NewCatalog creates a catalog over src with nothing selected.
// A nil source behaves like an empty one.
func NewCatalog(src Source) *Catalog {
	return &Catalog{src: src}
}

// Load replaces the configuration source and resets the selection.
func (c *Catalog) Load(src Source) {
	c.src = src
	c.Reset()
}

// IDs returns every device identifier in the source, sorted ascending.
func (c *Catalog) IDs() []string {
	devices := c.devices()
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of configured devices.
func (c *Catalog) Len() int {
	return len(c.devices())
}

// Has reports whether id is configured.
func (c *Catalog) Has(id string) bool {
	_, ok := c.devices()[id]
	return ok
}

// Select makes id the current device.
//
// An empty id is a no-op (OutcomeNothing). An id missing from the source
// leaves the selection untouched and returns ErrDeviceNotFound. Otherwise the
// previous materialised fields are cleared, id becomes current, and its
// mandatory system keys are loaded; if any is missing the fields stay blank
// and ErrInvalidDevice names the missing keys.
func (c *Catalog) Select(id string) (Outcome, error) {
	if id == "" {
		return OutcomeNothing, nil
	}

	raw, ok := c.devices()[id]
	if !ok {
		return OutcomeUnknown, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}

	c.system = System{}
	c.selection = Selected(id)

	record, _ := asMap(raw)
	sys, missing := materialise(record)
	if len(missing) > 0 {
		return OutcomeInvalid, fmt.Errorf("%w: %q missing system.%s",
			ErrInvalidDevice, id, strings.Join(missing, ", system."))
	}

	c.system = sys
	return OutcomeSelected, nil
}

// MarkAmbiguous records that more than one device answered a sweep.
// Materialised fields are cleared.
func (c *Catalog) MarkAmbiguous() {
	c.system = System{}
	c.selection = Ambiguous()
}

// Reset clears the selection and the materialised fields.
func (c *Catalog) Reset() {
	c.selection = Unset()
	c.system = System{}
}

// Selection returns the current selection.
func (c *Catalog) Selection() Selection {
	return c.selection
}

// CurrentID returns the selected identifier, if any.
func (c *Catalog) CurrentID() (string, bool) {
	return c.selection.ID()
}

// System returns the materialised mandatory fields. They are blank unless a
// device with a complete system section is selected.
func (c *Catalog) System() System {
	return c.system
}

// IsEnabled reports whether the selected device takes part in detection.
//
// The flag defaults to true. False is returned when nothing is selected,
// when the record cannot be read, or when the flag is explicitly false or
// is not a boolean.
func (c *Catalog) IsEnabled() bool {
	record, ok := c.record()
	if !ok {
		return false
	}
	return enableFlag(record)
}

// Enabled reports the enable flag of id without changing the selection.
// Unknown or unreadable records are not enabled.
func (c *Catalog) Enabled(id string) bool {
	record, ok := asMap(c.devices()[id])
	if !ok {
		return false
	}
	return enableFlag(record)
}

// Lookup returns a copy of id's record without changing the selection.
func (c *Catalog) Lookup(id string) (Section, bool) {
	raw, ok := c.devices()[id]
	if !ok {
		return nil, false
	}
	record, ok := asMap(raw)
	if !ok {
		return Section{}, true
	}
	return Section(deepCopyMap(record)), true
}

// enableFlag reports false only for an explicitly falsy enable value:
// false, null, zero, or one of the strings "", "false", "no", "off", "0".
// Anything else, including "yes", "on" and 1, enables the device.
func enableFlag(record map[string]any) bool {
	v, present := record[keyEnable]
	if !present {
		return true
	}

	switch flag := v.(type) {
	case nil:
		return false
	case bool:
		return flag
	case string:
		switch strings.ToLower(strings.TrimSpace(flag)) {
		case "", "false", "no", "off", "0":
			return false
		}
		return true
	case int:
		return flag != 0
	case int64:
		return flag != 0
	case uint64:
		return flag != 0
	case float64:
		return flag != 0
	default:
		return true
	}
}

// Record returns a copy of the whole record of the selected device.
func (c *Catalog) Record() Section {
	record, ok := c.record()
	if !ok {
		return Section{}
	}
	return Section(deepCopyMap(record))
}

// SystemSection returns the raw system section of the selected device.
func (c *Catalog) SystemSection() Section { return c.section(keySystem) }

// Comm returns the communication section of the selected device.
func (c *Catalog) Comm() Section { return c.section(keyComm) }

// Control returns the control section of the selected device.
func (c *Catalog) Control() Section { return c.section(keyControl) }

// Objects returns the object section of the selected device.
func (c *Catalog) Objects() Section { return c.section(keyObject) }

// Startup returns the startup sequence of the selected device.
func (c *Catalog) Startup() Sequence { return c.sequence(keyStartup) }

// Endup returns the endup sequence of the selected device.
func (c *Catalog) Endup() Sequence { return c.sequence(keyEndup) }

// Describe renders a short summary of the selected device:
//
//	    ID: x1
//	    Name: Arduino Mark 1
//	    Description: Bench controller
//
// A selected device with missing mandatory keys renders with blank fields.
// ok is false when nothing is selected or the selection is ambiguous.
func (c *Catalog) Describe() (text string, ok bool) {
	id, ok := c.selection.ID()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("    ID: %s\n    Name: %s Mark %s\n    Description: %s",
		id, c.system.Platform, c.system.Mark, c.system.Description), true
}

// devices returns the mapping under the source's device key.
func (c *Catalog) devices() map[string]any {
	devices, _ := asMap(c.src[keyDevice])
	return devices
}

// record returns the raw record of the selected device.
func (c *Catalog) record() (map[string]any, bool) {
	id, ok := c.selection.ID()
	if !ok {
		return nil, false
	}
	return asMap(c.devices()[id])
}

func (c *Catalog) section(key string) Section {
	record, ok := c.record()
	if !ok {
		return Section{}
	}
	m, ok := asMap(record[key])
	if !ok {
		return Section{}
	}
	return Section(deepCopyMap(m))
}

func (c *Catalog) sequence(key string) Sequence {
	record, ok := c.record()
	if !ok {
		return Sequence{}
	}
	var list []any
	switch v := record[key].(type) {
	case []any:
		list = v
	case Sequence:
		list = v
	default:
		return Sequence{}
	}
	return Sequence(deepCopyValue(list).([]any))
}

// materialise reads the mandatory keys of a record's system section.
// It returns the names of any keys that are absent.
func materialise(record map[string]any) (System, []string) {
	sys, _ := asMap(record[keySystem])

	var missing []string
	field := func(key string) string {
		v, ok := sys[key]
		if !ok {
			missing = append(missing, key)
			return ""
		}
		return scalar(v)
	}

	s := System{
		Platform:     field(KeyPlatform),
		Mark:         field(KeyMark),
		Description:  field(KeyDescription),
		Architecture: field(KeyArchitecture),
		Path:         field(KeyPath),
		Workdir:      field(KeyWorkdir),
		Logsdir:      field(KeyLogsdir),
	}
	if len(missing) > 0 {
		return System{}, missing
	}
	return s, nil
}

// asMap accepts the map shapes a source can carry.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Section:
		return m, true
	case Source:
		return m, true
	default:
		return nil, false
	}
}

func scalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
