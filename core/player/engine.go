package player

import (
	"sync"
	"time"
)

// Listener receives engine signals. Callbacks may arrive from any
// goroutine; implementations do their own locking.
type Listener interface {
	OnIsPlayingChanged(isPlaying bool)
	OnCompleted()
}

// Engine is the media playback contract the controller drives. An
// implementation owns decoding and output; the controller only issues
// commands and reads positions.
type Engine interface {
	Load(path string, startAt time.Duration) error
	Play()
	Pause()
	Stop()
	SeekTo(position time.Duration)
	Position() time.Duration
	Duration() time.Duration
	SetListener(l Listener)
}

// RemoteEngine mirrors a player that runs outside the service process,
// typically the audio element in the web client. Commands update the
// mirrored state immediately; the real player periodically reports its
// position and duration back through Report, and Complete signals that
// the stream reached its end.
type RemoteEngine struct {
	mu       sync.Mutex
	listener Listener

	path     string
	playing  bool
	position time.Duration
	duration time.Duration
}

func NewRemoteEngine() *RemoteEngine {
	return &RemoteEngine{}
}

func (e *RemoteEngine) SetListener(l Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

func (e *RemoteEngine) Load(path string, startAt time.Duration) error {
	e.mu.Lock()
	e.path = path
	e.position = startAt
	e.duration = 0
	e.playing = false
	e.mu.Unlock()
	return nil
}

func (e *RemoteEngine) Play() {
	e.setPlaying(true)
}

func (e *RemoteEngine) Pause() {
	e.setPlaying(false)
}

func (e *RemoteEngine) Stop() {
	e.mu.Lock()
	wasPlaying := e.playing
	listener := e.listener
	e.playing = false
	e.path = ""
	e.position = 0
	e.duration = 0
	e.mu.Unlock()

	if wasPlaying && listener != nil {
		listener.OnIsPlayingChanged(false)
	}
}

func (e *RemoteEngine) SeekTo(position time.Duration) {
	if position < 0 {
		position = 0
	}
	e.mu.Lock()
	e.position = position
	e.mu.Unlock()
}

func (e *RemoteEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *RemoteEngine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Report feeds the real player's observed state back into the mirror.
func (e *RemoteEngine) Report(position, duration time.Duration, isPlaying bool) {
	e.mu.Lock()
	e.position = position
	if duration > 0 {
		e.duration = duration
	}
	changed := e.playing != isPlaying
	e.playing = isPlaying
	listener := e.listener
	e.mu.Unlock()

	if changed && listener != nil {
		listener.OnIsPlayingChanged(isPlaying)
	}
}

// Complete signals that the remote player reached the end of the stream.
func (e *RemoteEngine) Complete() {
	e.mu.Lock()
	if e.duration > 0 {
		e.position = e.duration
	}
	e.playing = false
	listener := e.listener
	e.mu.Unlock()

	if listener != nil {
		listener.OnCompleted()
	}
}

// setPlaying flips the playing flag and notifies outside the lock so a
// listener can immediately read positions back without deadlocking.
func (e *RemoteEngine) setPlaying(playing bool) {
	e.mu.Lock()
	if e.path == "" || e.playing == playing {
		e.mu.Unlock()
		return
	}
	e.playing = playing
	listener := e.listener
	e.mu.Unlock()

	if listener != nil {
		listener.OnIsPlayingChanged(playing)
	}
}
