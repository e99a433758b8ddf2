package mapping

import (
	"moorlog/internal/codec"
	"moorlog/internal/store"
)

// RepairKind maps the repair log onto table.
func RepairKind(table string) *Kind {
	fields := []Field{
		{Name: "site"},
		{Name: "mooring_id", Inputs: []string{"mooringid"}},
		{Name: "cruise"},
		{Name: "personnel"},
		{Name: "cruise_site"},
		{Name: "counter", Codec: IntCodec, Def: "INTEGER"},
		{Name: "repair_date"},
		{Name: "argos_latitude"},
		{Name: "argos_longitude"},
		repairTimestamp("start_repair_time"),
		repairTimestamp("end_repair_time"),
		repairTimestamp("swap_time"),
		{Name: "actual_latitude"},
		{Name: "actual_longitude"},
		{Name: "depth"},
		{Name: "ctd_number"},
		{Name: "buoy_details", Inputs: []string{"buoy_condition"}, Columns: []string{"buoy_details", "buoy_condition"}},
		{Name: "repair_fishing_vandalism", Inputs: []string{"fishing_vandalism"}, Columns: []string{"repair_fishing_vandalism", "fishing_vandalism"}},
	}
	fields = append(fields, exchangeFields()...)
	for _, name := range []string{"tube_time", "gmt", "drift", "bat_logic", "bat_transmit", "file_name"} {
		fields = append(fields, Field{Name: name})
	}
	for _, source := range []string{"ship", "buoy"} {
		for _, obs := range []string{"date", "time", "wind_dir", "wind_spd", "air_temp", "sst", "ssc", "rh"} {
			fields = append(fields, Field{Name: source + "_" + obs})
		}
	}

	return &Kind{
		Name:   Repair,
		Table:  table,
		Fields: fields,
		Documents: []Document{
			{Name: "lost_equipment", Shape: ObjectShape, Build: func(in Input) (any, error) {
				if m := LostEquipment(in); len(m) > 0 {
					return m, nil
				}
				return nil, nil
			}},
			{Name: "replacement_equipment", Shape: ObjectShape, Build: func(in Input) (any, error) {
				if m := ReplacementEquipment(in); len(m) > 0 {
					return m, nil
				}
				return nil, nil
			}},
		},
		Required: []string{"site", "mooring_id", "repair_date"},
		Confirm: []ConfirmField{
			{Label: "repair_date", Columns: []string{"repair_date"}},
			{Label: "mooring_id", Columns: []string{"mooring_id"}},
		},
		Search: []SearchField{
			{Name: "site", Columns: []string{"site"}},
			{Name: "mooring", Columns: []string{"mooring_id"}, Like: true},
			{Name: "cruise", Columns: []string{"cruise"}, Like: true},
		},
		Order: []store.Order{{Column: "repair_date", Desc: true}, {Column: "id", Desc: true}},
		Sites: []string{"site"},
		Copies: []store.ColumnCopy{
			{Deprecated: "fishing_vandalism", Current: "repair_fishing_vandalism"},
			{Deprecated: "buoy_condition", Current: "buoy_details"},
		},
	}
}

// exchangeFields are the flat sensor exchange columns, fed by the same
// inputs as the equipment maps.
func exchangeFields() []Field {
	var out []Field
	for _, k := range EquipmentKinds {
		newSN := Field{Name: k.Key + "_new_sn", Inputs: k.NewSN[1:], Codec: SerialCodec}
		if k.Key == "tube" {
			newSN.Columns = []string{"NewTubeSN", "tube_new_sn"}
		}
		out = append(out,
			Field{Name: k.Key + "_old_sn", Inputs: k.OldSN[1:], Codec: SerialCodec},
			newSN,
			Field{Name: k.Key + "_condition", Inputs: k.Lost[1:]},
			Field{Name: k.Key + "_details"},
		)
	}
	return out
}

// repairTimestamp joins repair_date with the time entered under name as
// "YYYY-MM-DD HH:MM:00". It is absent without both parts.
func repairTimestamp(name string) Field {
	return Field{
		Name: name,
		Compute: func(in Input) (any, error) {
			date, clock := in.Text("repair_date"), in.Text(name)
			if date == "" || clock == "" {
				return nil, nil
			}
			return date + " " + codec.TrimToMinutes(clock) + ":00", nil
		},
	}
}
