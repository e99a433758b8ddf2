package mapping

import (
	"strconv"

	"moorlog/internal/codec"
)

// optional returns the first present value among keys as text, nil when
// none is present.
func optional(in Input, keys ...string) *string {
	v, ok := in.Lookup(keys...)
	if !ok {
		return nil
	}
	s := codec.Text(v)
	return &s
}

func optionalSerial(in Input, keys ...string) *string {
	v, ok := in.Lookup(keys...)
	if !ok {
		return nil
	}
	s := codec.NormalizeSerial(v)
	return &s
}

// EquipmentEntry is one sensor in lost_equipment. Both keys are always
// written; a missing value is null.
type EquipmentEntry struct {
	SN   *string `json:"sn"`
	Lost *string `json:"lost"`
}

// ReplacementEntry is one sensor in replacement_equipment.
type ReplacementEntry struct {
	SN *string `json:"sn"`
}

// EquipmentKind declares the inputs of one exchangeable sensor. Legacy
// spreadsheet headers follow the form keys.
type EquipmentKind struct {
	Key   string
	OldSN []string
	Lost  []string
	NewSN []string
}

// EquipmentKinds lists the sensors tracked in the repair equipment maps.
var EquipmentKinds = []EquipmentKind{
	{Key: "tube", OldSN: []string{"tube_old_sn", "Tube SN"}, Lost: []string{"tube_condition", "TubeLost"}, NewSN: []string{"tube_new_sn", "NewTubeSN"}},
	{Key: "ptt", OldSN: []string{"ptt_old_sn", "PTT ID"}, Lost: []string{"ptt_condition", "PTTLost"}, NewSN: []string{"ptt_new_sn", "New PTT Id"}},
	{Key: "atrh", OldSN: []string{"atrh_old_sn", "ATRH SN"}, Lost: []string{"atrh_condition", "ATRHlost"}, NewSN: []string{"atrh_new_sn", "New ATRH SN"}},
	{Key: "sst", OldSN: []string{"sst_old_sn", "SST SN"}, Lost: []string{"sst_condition", "SSTlost"}, NewSN: []string{"sst_new_sn", "New SST SN"}},
	{Key: "wind", OldSN: []string{"wind_old_sn", "Wind SN"}, Lost: []string{"wind_condition", "WindLost"}, NewSN: []string{"wind_new_sn", "New WindSN"}},
	{Key: "rain", OldSN: []string{"rain_old_sn", "Rain SN"}, Lost: []string{"rain_condition", "RainLost"}, NewSN: []string{"rain_new_sn", "New Rain SN"}},
	{Key: "swrad", OldSN: []string{"swrad_old_sn", "SW Rad SN"}, Lost: []string{"swrad_condition", "SWRadLost"}, NewSN: []string{"swrad_new_sn", "New SW Rad SN"}},
	{Key: "lwrad", OldSN: []string{"lwrad_old_sn", "LW Rad SN"}, Lost: []string{"lwrad_condition", "LWRadLost"}, NewSN: []string{"lwrad_new_sn", "New LW Rad SN"}},
	{Key: "baro", OldSN: []string{"baro_old_sn", "Baro SN"}, Lost: []string{"baro_condition", "BaroLost"}, NewSN: []string{"baro_new_sn", "New Baro SN"}},
	{Key: "seacat", OldSN: []string{"seacat_old_sn", "SeaCat SN"}, Lost: []string{"seacat_condition", "SeaCatLost"}, NewSN: []string{"seacat_new_sn", "New SeaCat SN"}},
}

// LostEquipment builds the lost_equipment map. A sensor is listed when its
// old serial or its lost note is present.
func LostEquipment(in Input) map[string]EquipmentEntry {
	out := make(map[string]EquipmentEntry)
	for _, k := range EquipmentKinds {
		sn := optionalSerial(in, k.OldSN...)
		lost := optional(in, k.Lost...)
		if sn == nil && lost == nil {
			continue
		}
		out[k.Key] = EquipmentEntry{SN: sn, Lost: lost}
	}
	return out
}

// ReplacementEquipment builds the replacement_equipment map from the new
// serials.
func ReplacementEquipment(in Input) map[string]ReplacementEntry {
	out := make(map[string]ReplacementEntry)
	for _, k := range EquipmentKinds {
		if sn := optionalSerial(in, k.NewSN...); sn != nil {
			out[k.Key] = ReplacementEntry{SN: sn}
		}
	}
	return out
}

// SensorCondition is the per-sensor condition document of a recovery.
// Picture is reserved and always null.
type SensorCondition struct {
	Condition *string `json:"condition"`
	Details   *string `json:"details"`
	Picture   *string `json:"picture"`
}

func sensorConditionDoc(sensor string, columns ...string) Document {
	cond, details := sensor+"_condition", sensor+"_details"
	return Document{
		Name:    cond,
		Columns: columns,
		Shape:   ObjectShape,
		Build: func(in Input) (any, error) {
			c, d := optional(in, cond), optional(in, details)
			if c == nil && d == nil {
				return nil, nil
			}
			return SensorCondition{Condition: c, Details: d}, nil
		},
	}
}

// NylonSpoolEntry is one spool of nylon line, listed by position 1..10.
// Length is a number when it parses, otherwise the text as entered.
type NylonSpoolEntry struct {
	Spool           *string `json:"spool"`
	SN              *string `json:"sn"`
	Length          any     `json:"length"`
	EV50OrCondition *string `json:"ev50_or_condition"`
}

// SpoolCount is the number of spool rows on the forms.
const SpoolCount = 10

// spoolKeys names the inputs of the spool at position 1..10.
type spoolKeys func(pos int) (label, sn, length, extra string)

func deploymentSpoolKeys(pos int) (string, string, string, string) {
	p := "spool_" + strconv.Itoa(pos)
	return p + "_label", p + "_sn", p + "_length", p + "_ev50"
}

// Recovery rows are numbered from zero.
func recoverySpoolKeys(pos int) (string, string, string, string) {
	i := pos - 1
	return indexed("nylon_spool", i), indexed("nylon_sn", i), indexed("nylon_length", i), indexed("nylon_condition", i)
}

// NylonSpools builds the ordered spool list. A row is kept when its serial,
// length, label or EV50/condition is present; a missing label defaults to
// the position.
func NylonSpools(in Input, keys spoolKeys) []NylonSpoolEntry {
	var out []NylonSpoolEntry
	for pos := 1; pos <= SpoolCount; pos++ {
		labelKey, snKey, lengthKey, extraKey := keys(pos)
		label := optional(in, labelKey)
		sn := optionalSerial(in, snKey)
		extra := optional(in, extraKey)
		rawLength, hasLength := in.Lookup(lengthKey)
		if label == nil && sn == nil && extra == nil && !hasLength {
			continue
		}
		if label == nil {
			s := strconv.Itoa(pos)
			label = &s
		}
		e := NylonSpoolEntry{Spool: label, SN: sn, EV50OrCondition: extra}
		if hasLength {
			e.Length = codec.CoerceNumber(rawLength)
		}
		out = append(out, e)
	}
	return out
}

// TotalSpoolLength sums the numeric spool lengths.
func TotalSpoolLength(spools []NylonSpoolEntry) float64 {
	var total float64
	for _, s := range spools {
		if f, ok := s.Length.(float64); ok {
			total += f
		}
	}
	return total
}

func spoolDoc(name string, columns []string, keys spoolKeys) Document {
	return Document{
		Name:    name,
		Columns: columns,
		Shape:   ArrayShape,
		Build: func(in Input) (any, error) {
			spools := NylonSpools(in, keys)
			if len(spools) == 0 {
				return nil, nil
			}
			return spools, nil
		},
	}
}

// ReleaseCommand is one acoustic release command reply.
type ReleaseCommand struct {
	CommandField string `json:"command_field"`
	Response     any    `json:"response"`
}

var releaseCommands = []struct {
	input, command string
}{
	{"release1_release", "rel8_relsn1::cmd_1/a_code_function_reply"},
	{"release1_disable", "rel8_relsn1::cmd_2/b_code_function_reply"},
	{"release1_enable", "rel8_relsn1::cmd_3/c_code_function_reply"},
	{"release2_release", "rel8_relsn2::cmd_1/a_code_function_reply"},
	{"release2_disable", "rel8_relsn2::cmd_2/b_code_function_reply"},
	{"release2_enable", "rel8_relsn2::cmd_3/c_code_function_reply"},
}

// ReleaseCommands lists the present command replies of both releases.
// Numeric replies are stored as numbers.
func ReleaseCommands(in Input) []ReleaseCommand {
	var out []ReleaseCommand
	for _, rc := range releaseCommands {
		if v, ok := in.Lookup(rc.input); ok {
			out = append(out, ReleaseCommand{CommandField: rc.command, Response: codec.CoerceNumber(v)})
		}
	}
	return out
}
