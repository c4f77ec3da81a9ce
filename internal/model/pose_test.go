package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoseRecord(t *testing.T) {
	record := "0.1,1.6,0.2,0,0,0,1,-0.3,1.1,0.4,0,0.7071,0,0.7071,0.3,1.2,0.4,0,0,0,1"

	pose, err := ParsePoseRecord(record)
	require.NoError(t, err)

	assert.Equal(t, Vec3{X: 0.1, Y: 1.6, Z: 0.2}, pose.Head.Position)
	assert.Equal(t, Quat{W: 1}, pose.Head.Rotation)
	assert.Equal(t, Quat{Y: 0.7071, W: 0.7071}, pose.LeftHand.Rotation)
	assert.Equal(t, Vec3{X: 0.3, Y: 1.2, Z: 0.4}, pose.Pose(TrackerRightHand).Position)
}

func TestParsePoseRecordErrors(t *testing.T) {
	_, err := ParsePoseRecord("1,2,3")
	assert.ErrorIs(t, err, ErrFieldCount)

	fields := make([]string, PoseFieldCount)
	for i := range fields {
		fields[i] = "0"
	}
	fields[9] = "nan?"
	_, err = ParsePoseFields(fields)
	assert.ErrorContains(t, err, "field 10")
}

func TestVec3Distance(t *testing.T) {
	assert.InDelta(t, 5.0, Vec3{}.Distance(Vec3{X: 3, Y: 4}), 1e-9)
}

func TestJSONObjectScan(t *testing.T) {
	var obj JSONObject
	require.NoError(t, obj.Scan(`{"board":"Arduino Uno"}`))
	assert.Equal(t, "Arduino Uno", obj["board"])

	require.NoError(t, obj.Scan([]byte(`{"n":1}`)))
	assert.Equal(t, float64(1), obj["n"])

	require.NoError(t, obj.Scan(nil))
	assert.Nil(t, obj)

	assert.Error(t, obj.Scan(42))

	value, err := JSONObject{"a": "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, value)
}

func TestComponentStateJSON(t *testing.T) {
	text, err := StateConnected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CONNECTED", string(text))
	assert.Equal(t, "UNKNOWN", ComponentState(9).String())

	for _, state := range []ComponentState{StateIdle, StateScanning, StateConnected} {
		encoded, err := json.Marshal(HeadsetStatus{State: state})
		require.NoError(t, err)

		var decoded HeadsetStatus
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		assert.Equal(t, state, decoded.State)
	}

	var status MotorStatus
	assert.Error(t, json.Unmarshal([]byte(`{"state":"SLEEPING"}`), &status))
}
