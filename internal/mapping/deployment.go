package mapping

import (
	"fmt"

	"moorlog/internal/codec"
	"moorlog/internal/store"
)

// DeploymentKind maps the deployment log onto table.
func DeploymentKind(table string) *Kind {
	return &Kind{
		Name:  Deployment,
		Table: table,
		Fields: []Field{
			{Name: "site"},
			{Name: "mooringid", Inputs: []string{"mooring_id"}, Columns: []string{"mooringid", "mooring_id"}},
			{Name: "cruise"},
			{Name: "latitude", Inputs: []string{"anchor_drp_lat"}, Codec: LatitudeCodec, Def: "REAL"},
			{Name: "longitude", Inputs: []string{"anchor_drp_long"}, Codec: LongitudeCodec, Def: "REAL"},
			{Name: "depth", Codec: NumberCodec},
			{Name: "dep_date", Columns: []string{"dep_date", "deployment_date"}},
		},
		Documents: []Document{
			objectDoc("deployment_info", nil,
				member("dep_date"),
				member("deployment_start_time").as(TimeCodec),
				member("personnel"),
				member("mooring_type"),
				member("comments", "deployment_comments"),
			),
			objectDoc("met_sensors", nil,
				metSensor("atrh", "atrh"),
				metSensor("rain", "rain"),
				metSensor("sw_radiation", "sw_radiation"),
				metSensor("lw_radiation", "lw_radiation"),
				metSensor("barometer", "barometer"),
				metSensor("wind", "wind"),
			),
			objectDoc("hardware", nil,
				member("buoy_sn").as(SerialCodec),
				member("insert"),
				member("anti_theft_cage"),
				member("fairing_depth"),
				member("teacup_handle"),
				member("tube_sn").as(SerialCodec),
				member("ptt_hexid"),
				member("time_zone"),
				member("software_ver"),
			),
			spoolDoc("nylon_spools", nil, deploymentSpoolKeys),
			objectDoc("nylon_config", nil,
				member("nylon_below_release"),
				member("wiresn", "wire_sn").as(SerialCodec),
				member("hardware_length"),
				member("wire_ln", "wire_length"),
				member("projected_scope"),
				member("wire_age", "wire_dep_number"),
				member("topsecsn", "top_section_sn").as(SerialCodec),
				member("top_sec_usage", "top_section_usage"),
			),
			{Name: "subsurface_sensors", Shape: ArrayShape, Build: buildDeploymentSensors},
			objectDoc("acoustic_releases", nil, acousticRelease(1), acousticRelease(2)),
			objectDoc("anchor_drop", nil,
				member("date", "anchor_date"),
				member("time", "anchor_time").as(TimeCodec),
				member("latitude", "anchor_latitude"),
				member("longitude", "anchor_longitude"),
				member("tow_time", "anchor_tow_time"),
				member("tow_distance", "anchor_tow_distance"),
				member("total_time", "anchor_total_time").orElse(anchorTotalTime),
				member("weight", "anchor_weight"),
			),
			objectDoc("met_obs", nil, metObsGroup("ship"), metObsGroup("buoy")),
			objectDoc("flyby", nil,
				member("buoy_latitude", "flyby_buoy_latitude"),
				member("buoy_longitude", "flyby_buoy_longitude"),
				member("anchor_latitude", "flyby_anchor_latitude"),
				member("anchor_longitude", "flyby_anchor_longitude"),
				member("uncorrected_depth", "flyby_uncorrected_depth"),
				member("depth_correction", "flyby_depth_correction"),
				member("transducer_depth", "flyby_transducer_depth"),
				member("corrected_depth", "flyby_corrected_depth").orElse(correctedDepth),
				member("final_scope", "flyby_final_scope").orElse(finalScope),
			),
		},
		Required: []string{"site", "mooringid", "cruise", "dep_date", "deployment_start_time"},
		Confirm: []ConfirmField{
			{Label: "dep_date", Columns: []string{"dep_date", "deployment_date"}},
			{Label: "mooringid", Columns: []string{"mooringid", "mooring_id"}},
		},
		Search: []SearchField{
			{Name: "site", Columns: []string{"site"}, Like: true},
			{Name: "mooring", Columns: []string{"mooringid", "mooring_id"}, Like: true},
			{Name: "cruise", Columns: []string{"cruise"}, Like: true},
			{Name: "personnel", Columns: []string{"deployment_info"}, Like: true},
		},
		Order: []store.Order{{Column: "created_at", Desc: true}, {Column: "updated_at", Desc: true}, {Column: "id", Desc: true}},
		Sites: []string{"site"},
	}
}

func metSensor(key, prefix string) Member {
	return group(key,
		member("type", prefix+"_type"),
		member("serial", prefix+"_serial").as(SerialCodec),
	)
}

func acousticRelease(n int) Member {
	p := fmt.Sprintf("release%d_", n)
	return group(fmt.Sprintf("release_%d", n),
		member("type", p+"type"),
		member("sn", p+"sn").as(SerialCodec),
		member("int_freq", p+"int_freq"),
		member("reply_freq", p+"reply_freq"),
		member("release", p+"release"),
		member("disable", p+"disable"),
		member("enable", p+"enable"),
	)
}

func metObsGroup(source string) Member {
	p := source + "_"
	return group(source,
		member("date", p+"date"),
		member("time", p+"time").as(TimeCodec),
		member("wind_dir", p+"wind_dir"),
		member("wind_spd", p+"wind_spd"),
		member("air_temp", p+"air_temp"),
		member("sst", p+"sst"),
		member("ssc", p+"ssc"),
		member("rh", p+"rh"),
	)
}

// anchorTotalTime is the time from the start of deployment to anchor drop.
// It is left empty when either time is missing or unreadable.
func anchorTotalTime(in Input) (any, error) {
	start, anchor := in.Text("deployment_start_time"), in.Text("anchor_time")
	if start == "" || anchor == "" {
		return nil, nil
	}
	total, err := codec.Elapsed(start, anchor)
	if err != nil {
		return nil, nil
	}
	return total, nil
}

func correctedDepth(in Input) (any, error) {
	keys := []string{"flyby_uncorrected_depth", "flyby_depth_correction", "flyby_transducer_depth"}
	if !in.Has(keys...) {
		return nil, nil
	}
	var sum float64
	for _, k := range keys {
		v, ok := in.Lookup(k)
		if !ok {
			continue
		}
		f, ok := codec.ParseNumber(v)
		if !ok {
			return nil, nil
		}
		sum += f
	}
	return fmt.Sprintf("%.2f", sum), nil
}

// finalScope needs the water depth and at least one length of line.
func finalScope(in Input) (any, error) {
	depth, ok := codec.ParseNumber(in["depth"])
	if !ok {
		return nil, nil
	}
	total := TotalSpoolLength(NylonSpools(in, deploymentSpoolKeys))
	lengths := []string{"hardware_length", "wire_length", "nylon_below_release"}
	if !in.Has(lengths...) && total == 0 {
		return nil, nil
	}
	parts := make([]float64, len(lengths))
	for i, k := range lengths {
		if v, present := in.Lookup(k); present {
			f, numeric := codec.ParseNumber(v)
			if !numeric {
				return nil, nil
			}
			parts[i] = f
		}
	}
	scope, ok := codec.FinalScope(parts[0], parts[1], parts[2], total, depth)
	if !ok {
		return nil, nil
	}
	return codec.FormatScope(scope), nil
}

// DeploymentSensor is one subsurface sensor on the deployment log.
type DeploymentSensor struct {
	Position int     `json:"position"`
	Depth    any     `json:"depth"`
	Type     string  `json:"type"`
	Address  *string `json:"address"`
	SN       string  `json:"sn"`
	TimeIn   string  `json:"time_in"`
	Comments *string `json:"comments"`
}

var deploymentSensorInputs = []string{"sensor_depth", "sensor_type", "sensor_address", "sensor_sn", "sensor_time_in", "sensor_comments"}

func buildDeploymentSensors(in Input) (any, error) {
	var out []DeploymentSensor
	for i := 0; i < SlotCount; i++ {
		present := false
		for _, prefix := range deploymentSensorInputs {
			if in.Has(indexed(prefix, i)) {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		s := DeploymentSensor{
			Position: i,
			Type:     in.Text(indexed("sensor_type", i)),
			Address:  optional(in, indexed("sensor_address", i)),
			SN:       in.Serial(indexed("sensor_sn", i)),
			TimeIn:   in.Text(indexed("sensor_time_in", i)),
			Comments: optional(in, indexed("sensor_comments", i)),
		}
		if v, ok := in.Lookup(indexed("sensor_depth", i)); ok {
			s.Depth = codec.CoerceNumber(v)
		}
		if IsSontek(s.Type) {
			empty := ""
			s.Address = &empty
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
