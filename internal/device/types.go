package device

import (
	"encoding/json"
	"fmt"
)

// Configuration source keys.
const (
	keyDevice  = "device"
	keyEnable  = "enable"
	keySystem  = "system"
	keyComm    = "comm"
	keyControl = "control"
	keyStartup = "startup"
	keyEndup   = "endup"
	keyObject  = "object"
)

// Mandatory keys of the system section, in the order they are reported.
const (
	KeyPlatform     = "plat"
	KeyMark         = "mark"
	KeyDescription  = "desc"
	KeyArchitecture = "arch"
	KeyPath         = "path"
	KeyWorkdir      = "work"
	KeyLogsdir      = "logs"
)

// MandatoryKeys lists the system keys every device record must carry.
var MandatoryKeys = []string{
	KeyPlatform,
	KeyMark,
	KeyDescription,
	KeyArchitecture,
	KeyPath,
	KeyWorkdir,
	KeyLogsdir,
}

// Source is a loaded configuration source. The catalog only reads it.
type Source map[string]any

// Section is a mapping-shaped configuration section (comm, control, object,
// system, or a full device record).
type Section map[string]any

// Sequence is a list-shaped configuration section (startup, endup).
type Sequence []any

// System holds the materialised mandatory fields of a selected device.
// The zero value is the blank baseline.
type System struct {
	Platform     string `json:"platform"`
	Mark         string `json:"mark"`
	Description  string `json:"description"`
	Architecture string `json:"architecture"`
	Path         string `json:"path"`
	Workdir      string `json:"workdir"`
	Logsdir      string `json:"logsdir"`
}

// IsZero reports whether s is the blank baseline.
func (s System) IsZero() bool {
	return s == System{}
}

// SelectionState tags the three possible catalog selections.
type SelectionState int

// Selection states.
const (
	StateUnset SelectionState = iota
	StateSelected
	StateAmbiguous
)

// String returns the lower-case name of the state.
func (s SelectionState) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateSelected:
		return "selected"
	case StateAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("SelectionState(%d)", int(s))
	}
}

// Selection is the catalog's current selection: Unset, Selected(id) or
// Ambiguous. The zero value is Unset.
type Selection struct {
	state SelectionState
	id    string
}

// Unset returns the empty selection.
func Unset() Selection { return Selection{} }

// Selected returns a selection pointing at id.
func Selected(id string) Selection {
	return Selection{state: StateSelected, id: id}
}

// Ambiguous returns the selection used when more than one device answered.
func Ambiguous() Selection {
	return Selection{state: StateAmbiguous}
}

// State returns the selection tag.
func (s Selection) State() SelectionState { return s.state }

// ID returns the selected identifier. ok is false unless the state is
// StateSelected.
func (s Selection) ID() (id string, ok bool) {
	if s.state != StateSelected {
		return "", false
	}
	return s.id, true
}

// String renders the selection for logs.
func (s Selection) String() string {
	if s.state == StateSelected {
		return "selected(" + s.id + ")"
	}
	return s.state.String()
}

// MarshalJSON renders the selection as {"state":"selected","id":"x1"}.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		State string `json:"state"`
		ID    string `json:"id,omitempty"`
	}{
		State: s.state.String(),
		ID:    s.id,
	})
}

// SelectionFrom rebuilds a selection from its state name and id, as stored
// by MarshalJSON. Unrecognised states yield Unset.
func SelectionFrom(state, id string) Selection {
	switch state {
	case StateSelected.String():
		return Selected(id)
	case StateAmbiguous.String():
		return Ambiguous()
	default:
		return Unset()
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw struct {
		State string `json:"state"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SelectionFrom(raw.State, raw.ID)
	return nil
}

// Outcome is the result of a single Catalog.Select call.
type Outcome int

// Select outcomes.
const (
	// OutcomeNothing means the identifier was empty; nothing changed.
	OutcomeNothing Outcome = iota
	// OutcomeSelected means the device was selected and its fields loaded.
	OutcomeSelected
	// OutcomeUnknown means the identifier is not in the source.
	OutcomeUnknown
	// OutcomeInvalid means the device was selected but mandatory keys are
	// missing; its fields remain blank.
	OutcomeInvalid
)

// String returns the lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNothing:
		return "nothing"
	case OutcomeSelected:
		return "selected"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, ok := ParseOutcome(string(text))
	if !ok {
		return fmt.Errorf("device: unknown outcome %q", text)
	}
	*o = parsed
	return nil
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range []Outcome{OutcomeNothing, OutcomeSelected, OutcomeUnknown, OutcomeInvalid} {
		if o.String() == s {
			return o, true
		}
	}
	return OutcomeNothing, false
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Section:
		return Section(deepCopyMap(val))
	case []any:
		return deepCopySlice(val)
	case Sequence:
		return Sequence(deepCopySlice(val))
	default:
		return v
	}
}

func deepCopySlice(s []any) []any {
	cpy := make([]any, len(s))
	for i, elem := range s {
		cpy[i] = deepCopyValue(elem)
	}
	return cpy
}
