package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitReachesSubscribersOfType(t *testing.T) {
	bus := NewBus(nil)

	var loans, txns []Event
	bus.Subscribe(LoanChanged, func(e Event) { loans = append(loans, e) })
	bus.Subscribe(TransactionsChanged, func(e Event) { txns = append(txns, e) })

	bus.Emit(LoanChanged, "test", 3)

	require.Len(t, loans, 1)
	assert.Empty(t, txns)
	assert.Equal(t, LoanChanged, loans[0].Type)
	assert.Equal(t, int64(3), loans[0].PropertyID)
	assert.Equal(t, "test", loans[0].Module)
	assert.False(t, loans[0].Timestamp.IsZero())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := map[string]int{}
	unsubA := bus.Subscribe(MappingsChanged, func(Event) { calls["a"]++ })
	bus.Subscribe(MappingsChanged, func(Event) { calls["b"]++ })

	bus.Emit(MappingsChanged, "test", 1)
	unsubA()
	unsubA()
	bus.Emit(MappingsChanged, "test", 1)

	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 2, calls["b"])
}

func TestBus_HandlerMaySubscribe(t *testing.T) {
	bus := NewBus(nil)

	nested := 0
	bus.Subscribe(ConfigChanged, func(Event) {
		bus.Subscribe(ForecastChanged, func(Event) { nested++ })
	})

	bus.Emit(ConfigChanged, "test", 1)
	bus.Emit(ForecastChanged, "test", 1)
	assert.Equal(t, 1, nested)
}
