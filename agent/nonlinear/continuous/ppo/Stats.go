package ppo

// miniBatchStats holds the losses of a single mini-batch
type miniBatchStats struct {
	loss, actor, critic, entropy float64
	kl, clipFraction             float64
}

// accumulator keeps running sums of mini-batch statistics over one
// call to Learn. It is never reset during a call, so the early stopping
// check always sees the mean KL of every mini-batch processed so far.
type accumulator struct {
	sum          miniBatchStats
	n            int
	earlyStopped bool
}

func (a *accumulator) add(mb miniBatchStats) {
	a.sum.loss += mb.loss
	a.sum.actor += mb.actor
	a.sum.critic += mb.critic
	a.sum.entropy += mb.entropy
	a.sum.kl += mb.kl
	a.sum.clipFraction += mb.clipFraction
	a.n++
}

// kl returns the mean approximate KL divergence so far
func (a *accumulator) kl() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum.kl / float64(a.n)
}

func (a *accumulator) stats() Stats {
	if a.n == 0 {
		return Stats{EarlyStopped: a.earlyStopped}
	}
	n := float64(a.n)
	return Stats{
		Loss:         a.sum.loss / n,
		PolicyLoss:   a.sum.actor / n,
		ValueLoss:    a.sum.critic / n,
		EntropyLoss:  a.sum.entropy / n,
		ApproxKL:     a.sum.kl / n,
		ClipFraction: a.sum.clipFraction / n,
		Updates:      a.n,
		EarlyStopped: a.earlyStopped,
	}
}
