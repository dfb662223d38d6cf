package voicecommand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpreter_EveryPhraseFiresOnce(t *testing.T) {
	for _, c := range Vocabulary {
		t.Run(string(c), func(t *testing.T) {
			var fired []Command
			i := NewInterpreter(func(c Command) { fired = append(fired, c) })

			got, ok := i.Update("ok computer " + strings.ToUpper(string(c)) + " please")
			assert.True(t, ok)
			assert.Equal(t, c, got)
			assert.Equal(t, []Command{c}, fired)
			assert.Empty(t, i.Transcript())

			// the same stale text does not fire again once cleared
			_, ok = i.Append("")
			assert.False(t, ok)
			assert.Len(t, fired, 1)
		})
	}
}

func TestInterpreter_NoMatchKeepsBuffer(t *testing.T) {
	i := NewInterpreter(func(Command) { t.Fatal("unexpected dispatch") })
	_, ok := i.Update("captain's log stardate")
	assert.False(t, ok)
	assert.Equal(t, "captain's log stardate", i.Transcript())
}

func TestInterpreter_AppendAccumulates(t *testing.T) {
	var fired []Command
	i := NewInterpreter(func(c Command) { fired = append(fired, c) })

	_, ok := i.Append("please stop")
	assert.False(t, ok)
	c, ok := i.Append("recording now")
	assert.True(t, ok)
	assert.Equal(t, Stop, c)
	assert.Equal(t, []Command{Stop}, fired)
}

func TestInterpreter_FirstMatchWins(t *testing.T) {
	var fired []Command
	i := NewInterpreter(func(c Command) { fired = append(fired, c) })

	i.Update("delete recording or stop recording")
	assert.Equal(t, []Command{Stop}, fired)
}

func TestInterpreter_OnClear(t *testing.T) {
	cleared := 0
	i := NewInterpreter(nil)
	i.OnClear(func() { cleared++ })
	i.Update("pause recording")
	i.Update("nothing here")
	assert.Equal(t, 1, cleared)
}

func TestShortcut(t *testing.T) {
	c, ok := Shortcut("S", true)
	assert.True(t, ok)
	assert.Equal(t, Stop, c)

	_, ok = Shortcut("s", false)
	assert.False(t, ok)

	_, ok = Shortcut("x", true)
	assert.False(t, ok)

	var fired []Command
	i := NewInterpreter(func(c Command) { fired = append(fired, c) })
	i.Update("partial")
	i.Key("l", true)
	assert.Equal(t, []Command{Play}, fired)
	assert.Equal(t, "partial", i.Transcript())
}
