package agent

// State holds the per-call compliance flags. All boolean flags are
// monotonic: once true they stay true for the life of the call. The
// State is owned exclusively by one Agent and is only mutated through
// its setters.
type State struct {
	verified           bool
	debtDisputed       bool
	hardshipClaimed    bool
	paymentPlanOffered bool
	paymentPlanStarted bool
}

func (s *State) Verified() bool           { return s.verified }
func (s *State) DebtDisputed() bool       { return s.debtDisputed }
func (s *State) HardshipClaimed() bool    { return s.hardshipClaimed }
func (s *State) PaymentPlanOffered() bool { return s.paymentPlanOffered }
func (s *State) PaymentPlanStarted() bool { return s.paymentPlanStarted }

func (s *State) markVerified()           { s.verified = true }
func (s *State) markDebtDisputed()       { s.debtDisputed = true }
func (s *State) markHardshipClaimed()    { s.hardshipClaimed = true }
func (s *State) markPaymentPlanOffered() { s.paymentPlanOffered = true }
func (s *State) markPaymentPlanStarted() { s.paymentPlanStarted = true }
