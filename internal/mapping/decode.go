package mapping

import (
	"encoding/json"
	"sort"
	"strings"

	"moorlog/internal/codec"
)

// DecodeDocument parses a stored document leniently. Missing, blank,
// malformed or wrongly shaped JSON yields the empty value of shape.
func DecodeDocument(raw any, shape Shape) any {
	s := codec.Text(raw)
	if s == "" {
		return shape.Empty()
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return shape.Empty()
	}
	switch v.(type) {
	case map[string]any:
		if shape == ObjectShape {
			return v
		}
	case []any:
		if shape == ArrayShape {
			return v
		}
	}
	return shape.Empty()
}

func decodeInto(raw any, dst any) bool {
	s := codec.Text(raw)
	if s == "" {
		return false
	}
	return json.Unmarshal([]byte(s), dst) == nil
}

// Stored documents predate this module and hold whatever the importer
// wrote, so entries are read member by member. A member of an unexpected
// JSON type is converted, and only an entry that is not an object is
// dropped.

func optText(v any) *string {
	if !codec.Present(v) {
		return nil
	}
	s := codec.Text(v)
	return &s
}

func optSerial(v any) *string {
	if !codec.Present(v) {
		return nil
	}
	s := codec.NormalizeSerial(v)
	return &s
}

func intValue(v any) (int, bool) {
	if !codec.Present(v) {
		return 0, false
	}
	n, ok := codec.CoerceInt(v).(int64)
	return int(n), ok
}

// objects decodes raw as a JSON object of objects.
func objects(raw any) (map[string]map[string]any, bool) {
	var m map[string]any
	if !decodeInto(raw, &m) {
		return nil, false
	}
	out := make(map[string]map[string]any, len(m))
	for k, v := range m {
		if obj, ok := v.(map[string]any); ok {
			out[k] = obj
		}
	}
	return out, true
}

// objectList decodes raw as a JSON array of objects, keeping each object's
// array index.
func objectList(raw any) ([]indexedObject, bool) {
	var list []any
	if !decodeInto(raw, &list) {
		return nil, false
	}
	out := make([]indexedObject, 0, len(list))
	for i, v := range list {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, indexedObject{index: i, obj: obj})
		}
	}
	return out, true
}

type indexedObject struct {
	index int
	obj   map[string]any
}

// DecodeLostEquipment reads lost_equipment, folding older sensor keys into
// current ones.
func DecodeLostEquipment(raw any) map[string]EquipmentEntry {
	m, ok := objects(raw)
	if !ok {
		return map[string]EquipmentEntry{}
	}
	out := make(map[string]EquipmentEntry, len(m))
	for k, obj := range m {
		out[k] = EquipmentEntry{SN: optSerial(obj["sn"]), Lost: optText(obj["lost"])}
	}
	return foldEquipmentKeys(out)
}

// DecodeReplacementEquipment reads replacement_equipment. The older PTT
// entries carry the id under "id".
func DecodeReplacementEquipment(raw any) map[string]ReplacementEntry {
	m, ok := objects(raw)
	if !ok {
		return map[string]ReplacementEntry{}
	}
	out := make(map[string]ReplacementEntry, len(m))
	for k, obj := range m {
		sn := optSerial(obj["sn"])
		if sn == nil {
			sn = optSerial(obj["id"])
		}
		out[k] = ReplacementEntry{SN: sn}
	}
	return foldEquipmentKeys(out)
}

// equipmentAliases maps keys written by older forms to current ones.
var equipmentAliases = map[string]string{
	"sw_rad":     "swrad",
	"lw_rad":     "lwrad",
	"baro_press": "baro",
}

func foldEquipmentKeys[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		if cur, ok := equipmentAliases[k]; ok {
			if _, taken := m[cur]; taken {
				continue
			}
			k = cur
		}
		out[k] = v
	}
	return out
}

func spoolEntry(label *string, obj map[string]any) NylonSpoolEntry {
	e := NylonSpoolEntry{
		Spool:           label,
		SN:              optSerial(obj["sn"]),
		EV50OrCondition: optText(obj["ev50_or_condition"]),
	}
	if e.EV50OrCondition == nil {
		e.EV50OrCondition = optText(obj["ev50"])
	}
	if codec.Present(obj["length"]) {
		e.Length = codec.CoerceNumber(obj["length"])
	}
	return e
}

// DecodeSpools reads a spool list. The older keyed layout
// {"spool_1": {...}} is converted to the list form.
func DecodeSpools(raw any) []NylonSpoolEntry {
	if list, ok := objectList(raw); ok {
		out := make([]NylonSpoolEntry, 0, len(list))
		for _, item := range list {
			out = append(out, spoolEntry(optSerial(item.obj["spool"]), item.obj))
		}
		return out
	}

	keyed, ok := objects(raw)
	if !ok {
		return []NylonSpoolEntry{}
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return spoolOrder(keys[i]) < spoolOrder(keys[j]) })

	out := make([]NylonSpoolEntry, 0, len(keys))
	for _, k := range keys {
		label := strings.TrimPrefix(k, "spool_")
		out = append(out, spoolEntry(&label, keyed[k]))
	}
	return out
}

func spoolOrder(key string) int {
	n, ok := codec.CoerceInt(strings.TrimPrefix(key, "spool_")).(int64)
	if !ok {
		return SpoolCount + 1
	}
	return int(n)
}

// timingEntry reads an instrument_timing entry. Older rows stored gmt_time
// and instrument_time, and the clock error as M:SS text.
func timingEntry(index int, obj map[string]any) ClockErrorEntry {
	e := ClockErrorEntry{
		Position:        index,
		SensorType:      codec.Text(obj["sensor_type"]),
		SerialNumber:    codec.NormalizeSerial(obj["serial_number"]),
		ActualTime:      firstText(obj["actual_time"], obj["gmt_time"]),
		InstTime:        firstText(obj["inst_time"], obj["instrument_time"]),
		Filename:        optText(obj["filename"]),
		BatteryVoltage:  optText(obj["battery_voltage"]),
		NumberOfRecords: optSerial(obj["number_of_records"]),
		Comments:        optText(obj["comments"]),
	}
	if pos, ok := intValue(obj["position"]); ok {
		e.Position = pos
	}
	switch v := obj["clock_error"].(type) {
	case float64:
		n := int(v)
		e.ClockError = &n
	case string:
		if n, err := codec.ParseClockError(v); err == nil {
			e.ClockError = &n
		}
	}
	return e
}

func firstText(values ...any) string {
	for _, v := range values {
		if s := codec.Text(v); s != "" {
			return s
		}
	}
	return ""
}

func instrumentEntry(index int, obj map[string]any) InstrumentEntry {
	e := InstrumentEntry{
		Position:       index,
		InstrumentType: codec.Text(obj["instrument_type"]),
		SerialNumber:   codec.NormalizeSerial(obj["serial_number"]),
		Address:        optText(obj["address"]),
		Timeout:        codec.Text(obj["timeout"]),
		Condition:      optText(obj["condition"]),
		Detail:         optText(obj["detail"]),
	}
	if pos, ok := intValue(obj["position"]); ok {
		e.Position = pos
	}
	if codec.Present(obj["depth"]) {
		e.Depth = codec.CoerceNumber(obj["depth"])
	}
	if IsSontek(e.InstrumentType) {
		empty := ""
		e.Address = &empty
	}
	return e
}

// DecodeSlots rebuilds combined slots from the stored instrument and timing
// arrays, pairing entries by position. Entries without a position take
// their array index. Malformed arrays decode as empty.
func DecodeSlots(instruments, timing any) Slots {
	insts, _ := objectList(instruments)
	times, _ := objectList(timing)

	byPos := make(map[int]*SubsurfaceSlot)
	slot := func(pos int) *SubsurfaceSlot {
		if s, ok := byPos[pos]; ok {
			return s
		}
		s := &SubsurfaceSlot{
			Position:   pos,
			Instrument: InstrumentEntry{Position: pos},
			Timing:     ClockErrorEntry{Position: pos},
		}
		byPos[pos] = s
		return s
	}

	for _, item := range insts {
		e := instrumentEntry(item.index, item.obj)
		slot(e.Position).Instrument = e
	}
	for _, item := range times {
		e := timingEntry(item.index, item.obj)
		slot(e.Position).Timing = e
	}

	out := make(Slots, 0, len(byPos))
	for _, s := range byPos {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
