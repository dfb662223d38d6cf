// Package voicecommand maps spoken phrases and keyboard shortcuts to
// recording session actions.
package voicecommand

import (
	"strings"
	"sync"
)

type Command string

const (
	BackToBridge Command = "back to bridge"
	Pause        Command = "pause recording"
	Resume       Command = "resume recording"
	Stop         Command = "stop recording"
	Delete       Command = "delete recording"
	Play         Command = "play recording"
)

// Vocabulary lists the recognised phrases in priority order.
var Vocabulary = []Command{BackToBridge, Pause, Resume, Stop, Delete, Play}

var shortcuts = map[string]Command{
	"b": BackToBridge,
	"p": Pause,
	"r": Resume,
	"s": Stop,
	"d": Delete,
	"l": Play,
}

// Match returns the first vocabulary phrase contained in transcript.
func Match(transcript string) (Command, bool) {
	text := strings.ToLower(transcript)
	for _, c := range Vocabulary {
		if strings.Contains(text, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Shortcut resolves a key press. Only Ctrl-modified keys are bound.
func Shortcut(key string, ctrl bool) (Command, bool) {
	if !ctrl {
		return "", false
	}
	c, ok := shortcuts[strings.ToLower(key)]
	return c, ok
}

// Interpreter watches a speech transcript and fires at most one command per
// update. The buffer is cleared as soon as a command fires so stale text
// cannot trigger it again.
type Interpreter struct {
	dispatch func(Command)
	onClear  func()

	mu     sync.Mutex
	buffer string
}

func NewInterpreter(dispatch func(Command)) *Interpreter {
	return &Interpreter{dispatch: dispatch}
}

// OnClear registers a hook run every time the buffer is cleared by a match.
func (i *Interpreter) OnClear(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onClear = fn
}

// Update replaces the buffer with the recogniser's accumulated transcript.
func (i *Interpreter) Update(transcript string) (Command, bool) {
	i.mu.Lock()
	i.buffer = transcript
	return i.check()
}

// Append adds a final recognition segment to the buffer.
func (i *Interpreter) Append(segment string) (Command, bool) {
	i.mu.Lock()
	if i.buffer != "" && segment != "" {
		i.buffer += " "
	}
	i.buffer += segment
	return i.check()
}

// Key dispatches a keyboard shortcut. The transcript is left untouched.
func (i *Interpreter) Key(key string, ctrl bool) (Command, bool) {
	c, ok := Shortcut(key, ctrl)
	if ok && i.dispatch != nil {
		i.dispatch(c)
	}
	return c, ok
}

// Transcript returns the current buffer.
func (i *Interpreter) Transcript() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.buffer
}

// Reset clears the buffer without dispatching.
func (i *Interpreter) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.buffer = ""
}

// check must be called with mu held and releases it.
func (i *Interpreter) check() (Command, bool) {
	c, ok := Match(i.buffer)
	if !ok {
		i.mu.Unlock()
		return "", false
	}
	i.buffer = ""
	onClear := i.onClear
	i.mu.Unlock()

	if onClear != nil {
		onClear()
	}
	if i.dispatch != nil {
		i.dispatch(c)
	}
	return c, true
}
