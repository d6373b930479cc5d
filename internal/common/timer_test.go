package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerLaps(t *testing.T) {
	timer := NewTimer()

	time.Sleep(5 * time.Millisecond)
	d := timer.Lap("load")
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)

	timer.Lap("compose")

	laps := timer.Laps()
	require.Len(t, laps, 2)
	assert.Equal(t, "load", laps[0].Stage)
	assert.Equal(t, "compose", laps[1].Stage)
	assert.GreaterOrEqual(t, timer.Total(), d)

	str := timer.String()
	assert.Contains(t, str, "load=")
	assert.Contains(t, str, "compose=")
}

func TestTimerLapsIsCopy(t *testing.T) {
	timer := NewTimer()
	timer.Lap("a")

	laps := timer.Laps()
	laps[0].Stage = "changed"

	assert.Equal(t, "a", timer.Laps()[0].Stage)
}
