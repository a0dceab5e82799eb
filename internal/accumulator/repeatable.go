package accumulator

// Tick is one period of the scheduler clock.
type Tick struct{}

// RepeatableAction counts ticks and hands out its action every time the
// count reaches the trigger threshold, after which counting restarts.
type RepeatableAction[V any] struct {
	ticks   int
	trigger int
	action  V
}

// NewRepeatableAction returns a timer that first fires after trigger ticks.
func NewRepeatableAction[V any](trigger int, action V) RepeatableAction[V] {
	return RepeatableAction[V]{trigger: trigger, action: action}
}

// NewRepeatableActionAt returns a timer whose counter already stands at
// ticks. NewRepeatableActionAt(n, n, a) fires on the very first tick.
func NewRepeatableActionAt[V any](ticks, trigger int, action V) RepeatableAction[V] {
	return RepeatableAction[V]{ticks: ticks, trigger: trigger, action: action}
}

func (r RepeatableAction[V]) Accept(Tick) Result[Tick, V] {
	if r.ticks+1 >= r.trigger {
		return SelfAndValue[Tick, V](RepeatableAction[V]{trigger: r.trigger, action: r.action}, r.action)
	}
	return Self[Tick, V](RepeatableAction[V]{ticks: r.ticks + 1, trigger: r.trigger, action: r.action})
}
