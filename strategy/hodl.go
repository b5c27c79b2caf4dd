package strategy

// Hodl50 opens no position and simply holds the initial token split at the
// initial price ratio, forming the no-LP baseline every LP strategy is
// compared against.
type Hodl50 struct{}

func NewHodl50() *Hodl50 { return &Hodl50{} }

func (s *Hodl50) Name() string { return "hold" }

func (s *Hodl50) OnEvent(snap Snapshot) (Action, error) {
	return Hold, nil
}
