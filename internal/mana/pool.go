package mana

// Pool is one side's mana. Every mutation keeps 0 <= Current <= Max.
type Pool struct {
	Current int
	Max     int
}

// NewPool creates a pool with the given values, clamped.
func NewPool(current, max int) Pool {
	p := Pool{}
	p.Set(current, max)
	return p
}

// Set overwrites both values, clamping current into [0, max].
func (p *Pool) Set(current, max int) {
	if max < 0 {
		max = 0
	}
	p.Max = max
	p.Current = clamp(current, 0, max)
}

// SetCurrent overwrites the current value, clamped to the existing max.
func (p *Pool) SetCurrent(current int) {
	p.Current = clamp(current, 0, p.Max)
}

// CanAfford reports whether cost can be paid.
func (p Pool) CanAfford(cost int) bool {
	return cost <= p.Current
}

// Spend deducts cost. Returns false and leaves the pool unchanged when the
// pool holds less than cost.
func (p *Pool) Spend(cost int) bool {
	if cost < 0 || !p.CanAfford(cost) {
		return false
	}
	p.Current -= cost
	return true
}

// Gain adds amount, stopping at Max.
func (p *Pool) Gain(amount int) {
	if amount <= 0 {
		return
	}
	p.Current = clamp(p.Current+amount, 0, p.Max)
}

// Grow raises Max by step without exceeding limit, then refills.
func (p *Pool) Grow(step, limit int) {
	next := p.Max + step
	if next > limit {
		next = limit
	}
	if next < p.Max {
		next = p.Max
	}
	p.Max = next
	p.Refill()
}

// Refill sets Current to Max.
func (p *Pool) Refill() {
	p.Current = p.Max
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
