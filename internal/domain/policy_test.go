package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationPolicyDaysFor(t *testing.T) {
	p := DurationPolicy{DefaultDays: 21, FinalRowDays: 300, Overrides: map[string]int{"B7": 45}}

	tests := []struct {
		name  string
		index int
		total int
		id    string
		want  int
	}{
		{"first of three", 0, 3, "A1", 21},
		{"middle of three", 1, 3, "A2", 21},
		{"last of three", 2, 3, "A3", 300},
		{"single row is last", 0, 1, "A1", 300},
		{"override on default row", 0, 3, "B7", 45},
		{"override beats final row", 2, 3, "B7", 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DaysFor(tt.index, tt.total, tt.id))
		})
	}
}

func TestDurationPolicyDaysFor_FinalRowDisabled(t *testing.T) {
	p := DurationPolicy{DefaultDays: 21}
	assert.Equal(t, 21, p.DaysFor(2, 3, "A3"))
}

func TestDurationPolicyValidate(t *testing.T) {
	assert.NoError(t, DurationPolicy{DefaultDays: 21, FinalRowDays: 300}.Validate())
	assert.NoError(t, DurationPolicy{DefaultDays: 1}.Validate())
	assert.Error(t, DurationPolicy{}.Validate())
	assert.Error(t, DurationPolicy{DefaultDays: 21, FinalRowDays: -1}.Validate())
	assert.Error(t, DurationPolicy{DefaultDays: 21, Overrides: map[string]int{"A1": 0}}.Validate())
}

func TestTimesteps(t *testing.T) {
	back := Timesteps{CalcMinutes: 60, SaveMinutes: 60, Backward: true}
	assert.Equal(t, -3600*time.Second, back.Calc())
	assert.Equal(t, 3600*time.Second, back.Save())

	fwd := Timesteps{CalcMinutes: 10, SaveMinutes: 30}
	assert.Equal(t, 10*time.Minute, fwd.Calc())
	assert.Equal(t, 30*time.Minute, fwd.Save())
}

func TestTimestepsValidate(t *testing.T) {
	assert.NoError(t, Timesteps{CalcMinutes: 60, SaveMinutes: 60}.Validate())
	assert.Error(t, Timesteps{CalcMinutes: 0, SaveMinutes: 60}.Validate())
	assert.Error(t, Timesteps{CalcMinutes: 60, SaveMinutes: -5}.Validate())
}

func TestDays(t *testing.T) {
	assert.Equal(t, 21*24*time.Hour, Days(21))
	assert.Equal(t, 300*24*time.Hour, Days(300))
}
