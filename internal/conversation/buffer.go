package conversation

import (
	"time"

	"github.com/chriscantu/advisord/internal/memory"
)

// sessionBuffer holds one session's turns in append order, which is also
// creation order. Turns are immutable after append, so readers may share
// the stored pointers.
type sessionBuffer struct {
	turns []*memory.ConversationTurn
}

// push appends a turn and returns the turn evicted by the capacity cap,
// if any.
func (b *sessionBuffer) push(turn *memory.ConversationTurn, maxTurns int) *memory.ConversationTurn {
	b.turns = append(b.turns, turn)
	if maxTurns <= 0 || len(b.turns) <= maxTurns {
		return nil
	}
	evicted := b.turns[0]
	copy(b.turns, b.turns[1:])
	b.turns[len(b.turns)-1] = nil
	b.turns = b.turns[:len(b.turns)-1]
	return evicted
}

// expire removes turns created before the cutoff and returns them.
// Append order is creation order, so expired turns form a prefix.
func (b *sessionBuffer) expire(cutoff time.Time) []*memory.ConversationTurn {
	idx := 0
	for idx < len(b.turns) && b.turns[idx].CreatedAt.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return nil
	}
	expired := make([]*memory.ConversationTurn, idx)
	copy(expired, b.turns[:idx])
	remaining := copy(b.turns, b.turns[idx:])
	for i := remaining; i < len(b.turns); i++ {
		b.turns[i] = nil
	}
	b.turns = b.turns[:remaining]
	return expired
}

// recent returns up to n turns, newest first.
func (b *sessionBuffer) recent(n int) []*memory.ConversationTurn {
	if n <= 0 || n > len(b.turns) {
		n = len(b.turns)
	}
	out := make([]*memory.ConversationTurn, 0, n)
	for i := len(b.turns) - 1; i >= len(b.turns)-n; i-- {
		out = append(out, b.turns[i])
	}
	return out
}
