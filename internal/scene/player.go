package scene

import "time"

// Clip is a named animation of fixed length.
type Clip struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Asset is the result of loading one content reference.
type Asset struct {
	Ref   string
	Node  *Node
	Clips []Clip
}

// Player plays a clip once and holds the final frame.
type Player struct {
	clip    Clip
	elapsed time.Duration
	playing bool
}

// NewPlayer creates a stopped player for clip.
func NewPlayer(clip Clip) *Player {
	return &Player{clip: clip}
}

// Clip returns the clip being played.
func (p *Player) Clip() Clip { return p.clip }

// Play restarts the clip from its first frame.
func (p *Player) Play() {
	p.elapsed = 0
	p.playing = true
}

// Stop halts playback and rewinds.
func (p *Player) Stop() {
	p.elapsed = 0
	p.playing = false
}

// Advance moves playback forward by dt, clamping at the clip end.
func (p *Player) Advance(dt time.Duration) {
	if !p.playing {
		return
	}
	p.elapsed += dt
	if p.elapsed >= p.clip.Duration {
		p.elapsed = p.clip.Duration
		p.playing = false
	}
}

// Time returns the playhead position.
func (p *Player) Time() time.Duration { return p.elapsed }

// Playing reports whether the clip is still advancing.
func (p *Player) Playing() bool { return p.playing }

// Finished reports whether the clip reached and holds its final frame.
func (p *Player) Finished() bool {
	return !p.playing && p.elapsed > 0 && p.elapsed == p.clip.Duration
}

// Mixer groups the players of one node.
type Mixer struct {
	players []*Player
}

// NewMixer creates one player per clip.
func NewMixer(clips []Clip) *Mixer {
	m := &Mixer{players: make([]*Player, 0, len(clips))}
	for _, c := range clips {
		m.players = append(m.players, NewPlayer(c))
	}
	return m
}

// Players returns the underlying players.
func (m *Mixer) Players() []*Player { return m.players }

// Play restarts every clip.
func (m *Mixer) Play() {
	for _, p := range m.players {
		p.Play()
	}
}

// Stop halts every clip.
func (m *Mixer) Stop() {
	for _, p := range m.players {
		p.Stop()
	}
}

// Advance moves every clip forward by dt.
func (m *Mixer) Advance(dt time.Duration) {
	for _, p := range m.players {
		p.Advance(dt)
	}
}

// Playing reports whether any clip is still advancing.
func (m *Mixer) Playing() bool {
	for _, p := range m.players {
		if p.Playing() {
			return true
		}
	}
	return false
}
