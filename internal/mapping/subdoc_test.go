package mapping

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moorlog/internal/codec"
)

func TestLostEquipment(t *testing.T) {
	in := Input{
		"tube_old_sn": "12345",
		"TubeLost":    nil,
		"ATRHlost":    "Yes",
		"wind_old_sn": "",
	}
	got := LostEquipment(in)

	want := map[string]EquipmentEntry{
		"tube": {SN: strptr("12345")},
		"atrh": {Lost: strptr("Yes")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LostEquipment mismatch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(got["tube"])
	require.NoError(t, err)
	assert.Equal(t, `{"sn":"12345","lost":null}`, string(b))
}

func TestEquipmentDocumentsOmittedWhenEmpty(t *testing.T) {
	rec, err := Build(RepairKind("repair_normalized"), Input{
		"site":        "0N165E",
		"mooring_id":  "RA092B",
		"repair_date": "2024-05-01",
		"TubeLost":    "  ",
	})
	require.NoError(t, err)
	_, ok := rec.Get("lost_equipment")
	assert.False(t, ok)
	_, ok = rec.Get("replacement_equipment")
	assert.False(t, ok)
}

func TestReplacementEquipmentLegacyHeaders(t *testing.T) {
	got := ReplacementEquipment(Input{
		"New PTT Id":   "A1B2C3",
		"New WindSN":   1207.0,
		"swrad_new_sn": "37795",
	})
	want := map[string]ReplacementEntry{
		"ptt":   {SN: strptr("A1B2C3")},
		"wind":  {SN: strptr("1207")},
		"swrad": {SN: strptr("37795")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReplacementEquipment mismatch (-want +got):\n%s", diff)
	}
}

func TestNylonSpools(t *testing.T) {
	in := Input{
		"spool_1_sn":     "N-101",
		"spool_1_length": "2000",
		"spool_2_label":  "2a",
		"spool_2_length": "about 3000",
		"spool_4_ev50":   "EV50 ok",
	}
	got := NylonSpools(in, deploymentSpoolKeys)
	want := []NylonSpoolEntry{
		{Spool: strptr("1"), SN: strptr("N-101"), Length: 2000.0},
		{Spool: strptr("2a"), Length: "about 3000"},
		{Spool: strptr("4"), EV50OrCondition: strptr("EV50 ok")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NylonSpools mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2000.0, TotalSpoolLength(got))
}

func TestRecoverySpoolsAreZeroIndexed(t *testing.T) {
	got := NylonSpools(Input{"nylon_sn_0": "N-7", "nylon_condition_9": "frayed"}, recoverySpoolKeys)
	require.Len(t, got, 2)
	assert.Equal(t, "1", *got[0].Spool)
	assert.Equal(t, "N-7", *got[0].SN)
	assert.Equal(t, "10", *got[1].Spool)
	assert.Equal(t, "frayed", *got[1].EV50OrCondition)
}

func TestReleaseCommands(t *testing.T) {
	got := ReleaseCommands(Input{
		"release1_release": "3456",
		"release2_enable":  "OK",
		"release1_disable": "",
	})
	want := []ReleaseCommand{
		{CommandField: "rel8_relsn1::cmd_1/a_code_function_reply", Response: 3456.0},
		{CommandField: "rel8_relsn2::cmd_3/c_code_function_reply", Response: "OK"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReleaseCommands mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSlotsAligned(t *testing.T) {
	in := Input{
		"ss_type_0":         "Sontek Argonaut",
		"ss_address_0":      "12",
		"ss_sn_0":           11153.0,
		"ss_depth_0":        "150",
		"ss_timeout_0":      "14:32:10",
		"sce_actual_time_3": "12:00:30",
		"sce_inst_time_3":   "12:00",
		"sce_filename_3":    "SC3.hex",
	}
	slots, err := BuildSlots(in)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	insts, timings := slots.Instruments(), slots.Timings()
	require.Len(t, insts, 2)
	require.Len(t, timings, 2)
	for i := range slots {
		assert.Equal(t, insts[i].Position, timings[i].Position)
	}

	assert.Equal(t, InstrumentEntry{
		Position:       0,
		Depth:          150.0,
		InstrumentType: "Sontek Argonaut",
		SerialNumber:   "11153",
		Address:        strptr(""),
		Timeout:        "14:32",
	}, insts[0])
	assert.Equal(t, ClockErrorEntry{Position: 0}, timings[0])

	assert.Equal(t, InstrumentEntry{Position: 3}, insts[1])
	assert.Equal(t, ClockErrorEntry{
		Position:   3,
		ActualTime: "12:00:30",
		InstTime:   "12:00:00",
		ClockError: intptr(30),
		Filename:   strptr("SC3.hex"),
	}, timings[1])

	assert.Empty(t, slots.Addresses())
	assert.Equal(t, []PositionValue{{Position: 3, Value: "SC3.hex"}}, slots.values(func(e ClockErrorEntry) *string { return e.Filename }))
}

func TestBuildSlotsEnteredClockError(t *testing.T) {
	slots, err := BuildSlots(Input{
		"sce_clock_error_2": "-2:40",
		"sce_actual_time_2": "12:00:00",
		"sce_inst_time_2":   "11:00:00",
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, -240, *slots[0].Timing.ClockError)
}

func TestBuildSlotsMalformedClockError(t *testing.T) {
	_, err := BuildSlots(Input{"sce_clock_error_5": "1:5"})
	require.Error(t, err)

	var m *codec.MalformedInputError
	require.True(t, errors.As(err, &m))
	assert.Equal(t, "sce_clock_error_5", m.Field)
}

func TestSensorConditionDocument(t *testing.T) {
	rec, err := Build(RecoveryKind("recoveries_normalized"), Input{
		"site":            "0N165E",
		"mooringid":       "RA092B",
		"at_rh_condition": "Good",
		"wind_details":    "cups bent",
	})
	require.NoError(t, err)

	atrh, ok := rec.Get("at_rh_condition")
	require.True(t, ok)
	assert.Equal(t, SensorCondition{Condition: strptr("Good")}, atrh)

	wind, ok := rec.Get("wind_condition")
	require.True(t, ok)
	b, err := json.Marshal(wind)
	require.NoError(t, err)
	assert.JSONEq(t, `{"condition":null,"details":"cups bent","picture":null}`, string(b))

	_, ok = rec.Get("tube_condition")
	assert.False(t, ok)
}

func TestRecoveryMetObservation(t *testing.T) {
	rec, err := Build(RecoveryKind("recoveries_normalized"), Input{
		"site":          "0N165E",
		"mooringid":     "RA092B",
		"ship_wind_dir": "009",
		"ship_time":     "06:30",
	})
	require.NoError(t, err)
	obs, ok := rec.Get("ship_met_data")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"wind_direction": "9", "time": "06:30:00"}, obs)
	_, ok = rec.Get("buoy_met_data")
	assert.False(t, ok)
}

func TestTubeClockError(t *testing.T) {
	rec, err := Build(RecoveryKind("recoveries_normalized"), Input{
		"site":             "0N165E",
		"mooringid":        "RA092B",
		"tube_actual_time": "23:59:50",
		"tube_inst_time":   "00:00:10",
	})
	require.NoError(t, err)
	v, ok := rec.Get("tube_clock_error")
	require.True(t, ok)
	assert.Equal(t, -20, v)
}

func TestDeploymentDerivedValues(t *testing.T) {
	in := Input{
		"site":                    "0N165E",
		"mooringid":               "PI-123",
		"cruise":                  "RB-24-01",
		"dep_date":                "2024-05-01",
		"deployment_start_time":   "08:15",
		"anchor_time":             "13:40:30",
		"depth":                   "4000",
		"hardware_length":         "30",
		"wire_length":             "470",
		"nylon_below_release":     "500",
		"spool_1_length":          "2000",
		"spool_2_length":          3000,
		"flyby_uncorrected_depth": "4012.5",
		"flyby_depth_correction":  "-3.25",
		"flyby_transducer_depth":  5,
	}
	rec, err := Build(DeploymentKind("deployments_normalized"), in)
	require.NoError(t, err)

	anchor, ok := rec.Get("anchor_drop")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"time": "13:40:30", "total_time": "05:25:30"}, anchor)

	flyby, ok := rec.Get("flyby")
	require.True(t, ok)
	want := map[string]any{
		"uncorrected_depth": "4012.5",
		"depth_correction":  "-3.25",
		"transducer_depth":  "5",
		"corrected_depth":   "4014.25",
		"final_scope":       "1.5",
	}
	if diff := cmp.Diff(want, flyby); diff != "" {
		t.Errorf("flyby mismatch (-want +got):\n%s", diff)
	}

	depth, _ := rec.Get("depth")
	assert.Equal(t, 4000.0, depth)
}

func TestDeploymentDerivedValuesLenient(t *testing.T) {
	rec, err := Build(DeploymentKind("deployments_normalized"), Input{
		"site":                  "0N165E",
		"mooringid":             "PI-123",
		"cruise":                "RB-24-01",
		"dep_date":              "2024-05-01",
		"deployment_start_time": "08:15",
		"anchor_time":           "late afternoon",
		"depth":                 "unknown",
		"wire_length":           "470",
	})
	require.NoError(t, err)

	anchor, ok := rec.Get("anchor_drop")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"time": "late afternoon"}, anchor)

	_, ok = rec.Get("flyby")
	assert.False(t, ok)
}

func TestDeploymentSensors(t *testing.T) {
	got, err := buildDeploymentSensors(Input{
		"sensor_type_4":    "SonTek ADV",
		"sensor_address_4": "3",
		"sensor_sn_4":      "D123.0",
		"sensor_depth_4":   "25",
	})
	require.NoError(t, err)
	assert.Equal(t, []DeploymentSensor{{
		Position: 4,
		Depth:    25.0,
		Type:     "SonTek ADV",
		Address:  strptr(""),
		SN:       "D123.0",
	}}, got)

	none, err := buildDeploymentSensors(Input{})
	require.NoError(t, err)
	assert.Nil(t, none)
}
