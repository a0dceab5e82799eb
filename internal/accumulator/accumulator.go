// Package accumulator implements the small state machines that turn a
// sequential feed of inputs into derived values.
//
// An Accumulator is immutable: Accept never changes the receiver, it returns
// a Result describing the accumulator to use for the next input and,
// optionally, a value produced by this input. Accumulators never emit
// anything as a side effect; the caller decides what to do with the values,
// which keeps ordering and delivery in one place.
//
// Two families live here:
//   - game result accumulators (Streak, Upset, Avenge, Phoenix, FirstBlood)
//     consume GameResult and produce narrative events;
//   - RepeatableAction consumes Tick and produces a scheduled action.
package accumulator

// Accumulator consumes inputs of type T and may produce values of type V.
type Accumulator[T, V any] interface {
	Accept(in T) Result[T, V]
}

// Result is the outcome of a single Accept call. It is exactly one of:
//   - Self: the accumulator continues, nothing was produced;
//   - SelfAndValue: the accumulator continues and produced a value;
//   - Value: a one-shot accumulator produced its value and is done.
type Result[T, V any] struct {
	next     Accumulator[T, V]
	value    V
	hasValue bool
}

// Self returns a Result carrying only the next accumulator.
func Self[T, V any](next Accumulator[T, V]) Result[T, V] {
	return Result[T, V]{next: next}
}

// SelfAndValue returns a Result carrying the next accumulator and a value.
func SelfAndValue[T, V any](next Accumulator[T, V], v V) Result[T, V] {
	return Result[T, V]{next: next, value: v, hasValue: true}
}

// Value returns a Result for a one-shot accumulator that is finished.
func Value[T, V any](v V) Result[T, V] {
	return Result[T, V]{value: v, hasValue: true}
}

// Next returns the accumulator to keep, or false when the accumulator is done.
func (r Result[T, V]) Next() (Accumulator[T, V], bool) {
	return r.next, r.next != nil
}

// Value returns the produced value, if any.
func (r Result[T, V]) Value() (V, bool) {
	return r.value, r.hasValue
}

// Run feeds in to every accumulator in order. It returns the accumulators to
// use for the next input (finished one-shot accumulators are dropped) and the
// produced values, both in accumulator order.
func Run[T, V any](accs []Accumulator[T, V], in T) ([]Accumulator[T, V], []V) {
	next := make([]Accumulator[T, V], 0, len(accs))
	var values []V
	for _, acc := range accs {
		r := acc.Accept(in)
		if n, ok := r.Next(); ok {
			next = append(next, n)
		}
		if v, ok := r.Value(); ok {
			values = append(values, v)
		}
	}
	return next, values
}
