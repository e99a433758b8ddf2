package mapping

import (
	"strings"

	"moorlog/internal/codec"
)

// SlotCount is the number of subsurface instrument rows on a recovery.
const SlotCount = 45

// InstrumentEntry describes the instrument recovered at one slot.
type InstrumentEntry struct {
	Position       int     `json:"position"`
	Depth          any     `json:"depth"`
	InstrumentType string  `json:"instrument_type"`
	SerialNumber   string  `json:"serial_number"`
	Address        *string `json:"address"`
	Timeout        string  `json:"timeout"`
	Condition      *string `json:"condition"`
	Detail         *string `json:"detail"`
}

// ClockErrorEntry is the timing check of the instrument at one slot.
// ClockError is the base-100 integer encoding.
type ClockErrorEntry struct {
	Position        int     `json:"position"`
	SensorType      string  `json:"sensor_type"`
	SerialNumber    string  `json:"serial_number"`
	ActualTime      string  `json:"actual_time"`
	InstTime        string  `json:"inst_time"`
	ClockError      *int    `json:"clock_error"`
	Filename        *string `json:"filename"`
	BatteryVoltage  *string `json:"battery_voltage"`
	NumberOfRecords *string `json:"number_of_records"`
	Comments        *string `json:"comments"`
}

// SubsurfaceSlot keeps an instrument and its timing together so the two
// stored arrays cannot drift apart.
type SubsurfaceSlot struct {
	Position   int
	Instrument InstrumentEntry
	Timing     ClockErrorEntry
}

// Slots is an ordered list of occupied slots.
type Slots []SubsurfaceSlot

// Instruments returns the instrument array, index-aligned with Timings.
func (s Slots) Instruments() []InstrumentEntry {
	out := make([]InstrumentEntry, len(s))
	for i, slot := range s {
		out[i] = slot.Instrument
	}
	return out
}

// Timings returns the timing array, index-aligned with Instruments.
func (s Slots) Timings() []ClockErrorEntry {
	out := make([]ClockErrorEntry, len(s))
	for i, slot := range s {
		out[i] = slot.Timing
	}
	return out
}

// IsSontek reports whether an instrument type belongs to the Sontek family,
// which has no bus address. The misspelling is common in the logs.
func IsSontek(instrumentType string) bool {
	t := strings.ToLower(instrumentType)
	return strings.Contains(t, "sontek") || strings.Contains(t, "sonteck")
}

var instrumentInputs = []string{"ss_depth", "ss_type", "ss_sn", "ss_address", "ss_timeout", "ss_condition", "ss_detail"}

var timingInputs = []string{
	"sce_sensor_type", "sce_sn", "sce_actual_time", "sce_inst_time", "sce_clock_error",
	"sce_filename", "sce_battery_voltage", "sce_num_records", "sce_comments",
}

// BuildSlots reads the ss_* and sce_* rows. A slot is kept when any of its
// instrument or timing inputs is present, and then appears in both arrays.
func BuildSlots(in Input) (Slots, error) {
	var out Slots
	for i := 0; i < SlotCount; i++ {
		if !slotPresent(in, i) {
			continue
		}
		timing, err := buildTiming(in, i)
		if err != nil {
			return nil, err
		}
		out = append(out, SubsurfaceSlot{Position: i, Instrument: buildInstrument(in, i), Timing: timing})
	}
	return out, nil
}

func slotPresent(in Input, i int) bool {
	for _, prefix := range instrumentInputs {
		if in.Has(indexed(prefix, i)) {
			return true
		}
	}
	for _, prefix := range timingInputs {
		if in.Has(indexed(prefix, i)) {
			return true
		}
	}
	return false
}

func buildInstrument(in Input, i int) InstrumentEntry {
	e := InstrumentEntry{
		Position:       i,
		InstrumentType: in.Text(indexed("ss_type", i)),
		SerialNumber:   in.Serial(indexed("ss_sn", i)),
		Address:        optional(in, indexed("ss_address", i)),
		Condition:      optional(in, indexed("ss_condition", i)),
		Detail:         optional(in, indexed("ss_detail", i)),
	}
	if v, ok := in.Lookup(indexed("ss_depth", i)); ok {
		e.Depth = codec.CoerceNumber(v)
	}
	if t := in.Text(indexed("ss_timeout", i)); t != "" {
		e.Timeout = codec.TrimToMinutes(t)
	}
	if IsSontek(e.InstrumentType) {
		empty := ""
		e.Address = &empty
	}
	return e
}

func buildTiming(in Input, i int) (ClockErrorEntry, error) {
	e := ClockErrorEntry{
		Position:        i,
		SensorType:      in.Text(indexed("sce_sensor_type", i)),
		SerialNumber:    in.Serial(indexed("sce_sn", i)),
		ActualTime:      codec.NormalizeTimeOfDay(in.Text(indexed("sce_actual_time", i))),
		InstTime:        codec.NormalizeTimeOfDay(in.Text(indexed("sce_inst_time", i))),
		Filename:        optional(in, indexed("sce_filename", i)),
		BatteryVoltage:  optional(in, indexed("sce_battery_voltage", i)),
		NumberOfRecords: optional(in, indexed("sce_num_records", i)),
		Comments:        optional(in, indexed("sce_comments", i)),
	}

	key := indexed("sce_clock_error", i)
	display := in.Text(key)
	if display == "" && e.ActualTime != "" && e.InstTime != "" {
		computed, err := codec.ClockErrorFromTimes(e.ActualTime, e.InstTime)
		if err != nil {
			return e, codec.WithField(err, indexed("sce_actual_time", i))
		}
		display = computed
	}
	if display != "" {
		n, err := codec.ParseClockError(display)
		if err != nil {
			return e, forceField(err, key)
		}
		e.ClockError = &n
	}
	return e, nil
}

// forceField renames the field of a malformed input error to the slot's
// input key.
func forceField(err error, field string) error {
	if m, ok := err.(*codec.MalformedInputError); ok {
		return &codec.MalformedInputError{Field: field, Value: m.Value, Reason: m.Reason}
	}
	return err
}

// PositionValue is one entry of the per-slot side columns.
type PositionValue struct {
	Position int    `json:"position"`
	Value    string `json:"value"`
}

// AddressEntry is one entry of instrument_addresses.
type AddressEntry struct {
	Position int    `json:"position"`
	Address  string `json:"address"`
}

// VoltageEntry is one entry of battery_voltages.
type VoltageEntry struct {
	Position int    `json:"position"`
	Voltage  string `json:"voltage"`
}

// Addresses lists the non-empty instrument addresses.
func (s Slots) Addresses() []AddressEntry {
	var out []AddressEntry
	for _, slot := range s {
		if a := slot.Instrument.Address; a != nil && *a != "" {
			out = append(out, AddressEntry{Position: slot.Position, Address: *a})
		}
	}
	return out
}

// Voltages lists the recorded battery voltages.
func (s Slots) Voltages() []VoltageEntry {
	var out []VoltageEntry
	for _, slot := range s {
		if v := slot.Timing.BatteryVoltage; v != nil {
			out = append(out, VoltageEntry{Position: slot.Position, Voltage: *v})
		}
	}
	return out
}

func (s Slots) values(pick func(ClockErrorEntry) *string) []PositionValue {
	var out []PositionValue
	for _, slot := range s {
		if v := pick(slot.Timing); v != nil {
			out = append(out, PositionValue{Position: slot.Position, Value: *v})
		}
	}
	return out
}

// slotDoc stores one projection of the slots. The projection returns nil
// when it has nothing to store.
func slotDoc(name string, columns []string, project func(Slots) any) Document {
	return Document{
		Name:    name,
		Columns: columns,
		Shape:   ArrayShape,
		Build: func(in Input) (any, error) {
			slots, err := BuildSlots(in)
			if err != nil || len(slots) == 0 {
				return nil, err
			}
			return project(slots), nil
		},
	}
}

func slotDocuments() []Document {
	return []Document{
		slotDoc("subsurface_instruments", nil, func(s Slots) any { return s.Instruments() }),
		slotDoc("instrument_timing", nil, func(s Slots) any { return s.Timings() }),
		slotDoc("instrument_addresses", nil, func(s Slots) any {
			if a := s.Addresses(); len(a) > 0 {
				return a
			}
			return nil
		}),
		slotDoc("battery_voltages", nil, func(s Slots) any {
			if v := s.Voltages(); len(v) > 0 {
				return v
			}
			return nil
		}),
		slotDoc("fname", nil, positionValues(func(e ClockErrorEntry) *string { return e.Filename })),
		slotDoc("numofrec", nil, positionValues(func(e ClockErrorEntry) *string { return e.NumberOfRecords })),
		slotDoc("errcom", nil, positionValues(func(e ClockErrorEntry) *string { return e.Comments })),
	}
}

func positionValues(pick func(ClockErrorEntry) *string) func(Slots) any {
	return func(s Slots) any {
		if v := s.values(pick); len(v) > 0 {
			return v
		}
		return nil
	}
}
