package vehicle

// Tuner is the capability every gain-tuning view works against: one control
// loop that can be read as a whole and submitted as a whole.
type Tuner interface {
	Loop() Loop
	Axes() []Axis
	Read() map[Axis]PIDGains
	Submit(gains map[Axis]PIDGains) bool
}

type loopTuner struct {
	link *Link
	loop Loop
}

func (t loopTuner) Loop() Loop   { return t.loop }
func (t loopTuner) Axes() []Axis { return Axes(t.loop) }

func (t loopTuner) Read() map[Axis]PIDGains {
	out := make(map[Axis]PIDGains, 3)
	for _, axis := range t.Axes() {
		out[axis] = t.link.PIDGains(t.loop, axis)
	}
	return out
}

func (t loopTuner) Submit(gains map[Axis]PIDGains) bool {
	return t.link.SetAll(t.loop, gains)
}

// Tuner returns the tuner for loop.
func (l *Link) Tuner(loop Loop) (Tuner, bool) {
	if Axes(loop) == nil {
		return nil, false
	}
	return loopTuner{link: l, loop: loop}, true
}

// Tuners returns one tuner per control loop.
func (l *Link) Tuners() []Tuner {
	out := make([]Tuner, 0, len(Loops))
	for _, loop := range Loops {
		t, _ := l.Tuner(loop)
		out = append(out, t)
	}
	return out
}
