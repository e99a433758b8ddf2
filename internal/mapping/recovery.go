package mapping

import (
	"moorlog/internal/codec"
	"moorlog/internal/store"
)

// recoveryDateColumns are the names the recovery date has carried.
var recoveryDateColumns = []string{"release_fire_date", "relfiredate", "rec_date", "recovery_date", "date"}

// RecoveryKind maps the recovery log onto table.
func RecoveryKind(table string) *Kind {
	return &Kind{
		Name:  Recovery,
		Table: table,
		Fields: []Field{
			{Name: "site"},
			{Name: "mooringid", Inputs: []string{"mooring_id"}, Columns: []string{"mooring_id", "mooringid"}},
			{Name: "cruise"},
			{Name: "mooring_status", Columns: []string{"statuspriortodeparture"}},
			{Name: "mooring_type"},
			{Name: "personnel"},
			{Name: "touch_time", Codec: TimeCodec},

			{Name: "release_latitude", Columns: []string{"relfirelat"}},
			{Name: "release_longitude", Columns: []string{"relfirelong"}},
			{Name: "fire_time", Columns: []string{"relfiretime"}, Codec: TimeCodec},
			{Name: "fire_date", Columns: []string{"relfiredate", "release_fire_date"}},
			{Name: "time_on_deck", Columns: []string{"relon_decktime"}, Codec: TimeCodec},
			{Name: "date_on_deck", Columns: []string{"dateondeck"}},

			{Name: "tube_sn", Columns: []string{"tubesn"}, Codec: SerialCodec},
			{Name: "ptt_hexid_sn", Columns: []string{"ptt_id"}, Codec: SerialCodec},
			{Name: "at_rh_sn", Columns: []string{"atrh_sn"}, Codec: SerialCodec},
			{Name: "wind_sn", Columns: []string{"windsn"}, Codec: SerialCodec},
			{Name: "rain_gauge_sn", Columns: []string{"rain_sn"}, Codec: SerialCodec},
			{Name: "sw_radiation_sn", Columns: []string{"swrad_sn"}, Codec: SerialCodec},
			{Name: "lw_radiation_sn", Columns: []string{"lwrad_sn"}, Codec: SerialCodec},
			{Name: "barometer_sn", Columns: []string{"baro_sn"}, Codec: SerialCodec},
			{Name: "seacat_sn", Codec: SerialCodec},

			{Name: "argos_latitude", Columns: []string{"argoslat"}},
			{Name: "argos_longitude", Columns: []string{"argoslong"}},
			{Name: "fishing_vandalism", Columns: []string{"fishing_or_vandalism"}},

			{Name: "buoy_hardware_sn", Columns: []string{"buoy_sn"}, Codec: SerialCodec},
			{Name: "buoy_hardware_condition", Columns: []string{"buoy_condition"}},
			{Name: "buoy_top_section_sn", Columns: []string{"top_section_sn"}, Codec: SerialCodec},
			{Name: "buoy_glass_balls", Columns: []string{"glassballs"}, Codec: IntCodec, Def: "INTEGER"},
			{Name: "wire_hardware_sn", Columns: []string{"wiresn"}, Codec: SerialCodec},
			{Name: "wire_hardware_condition", Columns: []string{"wirecond"}},

			{Name: "battery_logic", Columns: []string{"batlogic"}},
			{Name: "battery_transmit", Columns: []string{"battransmit"}},
			{Name: "tube_date", Columns: []string{"batdate"}},
			{Name: "tube_actual_time", Columns: []string{"gmt_tube"}, Codec: TimeCodec},
			{Name: "tube_clock_error", Columns: []string{"clk_err_tube"}, Def: "INTEGER", Compute: tubeClockError},

			{Name: "rel_type_1"},
			{Name: "rel_sn_1", Codec: SerialCodec},
			{Name: "rel_1_rec"},
			{Name: "rel_type_2"},
			{Name: "rel_sn_2", Codec: SerialCodec},
			{Name: "rel_2_rec"},
			{Name: "release_comments"},
		},
		Documents: append([]Document{
			sensorConditionDoc("tube", "tube_condition"),
			sensorConditionDoc("ptt_hexid", "ptt_hexid_condition"),
			sensorConditionDoc("at_rh", "at_rh_condition", "atrh_condition"),
			sensorConditionDoc("wind", "wind_condition"),
			sensorConditionDoc("rain_gauge", "rain_gauge_condition", "rain_condition"),
			sensorConditionDoc("sw_radiation", "sw_radiation_condition", "swrad_condition"),
			sensorConditionDoc("lw_radiation", "lw_radiation_condition", "lwrad_condition"),
			sensorConditionDoc("barometer", "barometer_condition", "baro_condition"),
			sensorConditionDoc("seacat", "seacat_condition"),
			recoveryMetObs("ship"),
			recoveryMetObs("buoy"),
			spoolDoc("nylon_lines", nil, recoverySpoolKeys),
			{Name: "release_commands", Shape: ArrayShape, Build: func(in Input) (any, error) {
				if cmds := ReleaseCommands(in); len(cmds) > 0 {
					return cmds, nil
				}
				return nil, nil
			}},
		}, slotDocuments()...),
		Required: []string{"site", "mooringid"},
		Confirm: []ConfirmField{
			{Label: "date", Columns: recoveryDateColumns},
			{Label: "mooring_id", Columns: []string{"mooring_id", "mooringid"}},
		},
		Search: []SearchField{
			{Name: "site", Columns: []string{"site"}, Like: true},
			{Name: "mooring", Columns: []string{"mooring_id", "mooringid"}, Like: true},
			{Name: "cruise", Columns: []string{"cruise"}, Like: true},
			{Name: "personnel", Columns: []string{"personnel"}, Like: true},
		},
		Order: []store.Order{{Column: "mooring_id", Desc: true}, {Column: "mooringid", Desc: true}, {Column: "id", Desc: true}},
		Sites: []string{"site"},
	}
}

// recoveryMetObs stores one met observation with its wind direction parsed
// from the nautical form.
func recoveryMetObs(source string) Document {
	p := source + "_"
	return objectDoc(source+"_met_data", []string{source + "_met_data", "met_" + source},
		member("date", p+"date"),
		member("time", p+"time").as(TimeCodec),
		member("wind_direction", p+"wind_dir").as(NauticalWindCodec),
		member("wind_speed", p+"wind_spd"),
		member("air_temp", p+"air_temp"),
		member("sea_surface_temp", p+"sst"),
		member("ssc", p+"ssc"),
		member("relative_humidity", p+"rh"),
	)
}

// tubeClockError takes the entered clock error, or computes it from the
// tube's actual and instrument times.
func tubeClockError(in Input) (any, error) {
	if v, ok := in.Lookup("tube_clock_error"); ok {
		return ClockCodec(v)
	}
	actual, inst := in.Text("tube_actual_time"), in.Text("tube_inst_time")
	if actual == "" || inst == "" {
		return nil, nil
	}
	display, err := codec.ClockErrorFromTimes(actual, inst)
	if err != nil {
		return nil, err
	}
	return codec.ParseClockError(display)
}
