package entropy

// Scripted is a Source that replays fixed rolls, for tests and what-if runs.
// Float64 cycles through Rolls; Intn returns 0 and Shuffle leaves order alone.
type Scripted struct {
	Rolls []float64
	next  int
}

// Fixed returns a Source whose every roll is v.
func Fixed(v float64) *Scripted {
	return &Scripted{Rolls: []float64{v}}
}

func (s *Scripted) Float64() float64 {
	if len(s.Rolls) == 0 {
		return 0
	}
	v := s.Rolls[s.next%len(s.Rolls)]
	s.next++
	return v
}

func (s *Scripted) Intn(n int) int { return 0 }

func (s *Scripted) Shuffle(n int, swap func(i, j int)) {}

// Drawn reports how many Float64 rolls have been consumed.
func (s *Scripted) Drawn() int { return s.next }
