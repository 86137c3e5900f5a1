package indicator

import (
	"strconv"

	"candle-featuresv1/internal/model"
)

// MACD is EMA(short) - EMA(long) over prices.
func MACD(prices []float64, short, long int) Value {
	if short <= 0 || long <= 0 || len(prices) < long {
		return Undefined()
	}
	s, ok := EMA(prices, short).Float()
	if !ok {
		return Undefined()
	}
	l, _ := EMA(prices, long).Float()
	return Defined(s - l)
}

// MACI is the MACD minus its signal line.
//
// The MACD line holds one point per index i in [long, len(prices)), each
// computed over prices[:i+1]. The signal is EMA(line, signal) with the same
// seed-from-position convention as EMA, i.e. the line is treated as a plain
// price sequence. Needs long+signal prices.
func MACI(prices []float64, short, long, signal int) Value {
	if signal <= 0 || long <= 0 || len(prices) < long+signal {
		return Undefined()
	}
	line := make([]float64, 0, len(prices)-long)
	for i := long; i < len(prices); i++ {
		m, ok := MACD(prices[:i+1], short, long).Float()
		if !ok {
			return Undefined()
		}
		line = append(line, m)
	}
	return signalDiff(line, signal)
}

func signalDiff(line []float64, signal int) Value {
	sig, ok := EMA(line, signal).Float()
	if !ok {
		return Undefined()
	}
	return Defined(line[len(line)-1] - sig)
}

func macdSpan(short, long int) int {
	if short > long {
		return short
	}
	return long
}

// MACDState is the streaming form of MACD over bar closes.
type MACDState struct {
	short, long int
	closes      *window[float64]
	count       int
	current     Value
}

// NewMACDState creates a streaming MACD (typically 12, 26).
func NewMACDState(short, long int) *MACDState {
	return &MACDState{short: short, long: long, closes: newWindow[float64](macdSpan(short, long))}
}

func (m *MACDState) Name() string {
	return "MACD_" + strconv.Itoa(m.short) + "_" + strconv.Itoa(m.long)
}

func (m *MACDState) Update(bar model.Bar) {
	m.closes.push(bar.Close)
	m.count++
	m.current = MACD(m.closes.values(), m.short, m.long)
}

func (m *MACDState) Value() Value { return m.current }
func (m *MACDState) Ready() bool  { return m.current.IsDefined() }

// Peek computes what MACD would be with an additional bar without mutating state.
func (m *MACDState) Peek(bar model.Bar) Value {
	return MACD(m.closes.withNext(bar.Close), m.short, m.long)
}

// Reset clears the MACD state for reuse.
func (m *MACDState) Reset() {
	m.closes.reset()
	m.count = 0
	m.current = Undefined()
}

// Snapshot serializes the MACD state for checkpoint persistence.
func (m *MACDState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{Type: TypeMACD, Short: m.short, Long: m.long, Count: m.count, Closes: m.closes.snapshot()}
}

// RestoreFromSnapshot restores MACD state from a checkpoint.
func (m *MACDState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expectMACD(TypeMACD, m.short, m.long, 0); err != nil {
		return err
	}
	m.count = snap.Count
	m.closes.restore(snap.Closes)
	m.current = MACD(m.closes.values(), m.short, m.long)
	return nil
}

// MACIState is the streaming form of MACI. It keeps the closes needed for
// one MACD point and the last signal points of the MACD line.
type MACIState struct {
	short, long, signal int
	closes              *window[float64]
	line                *window[float64]
	count               int
	current             Value
}

// NewMACIState creates a streaming MACI (typically 12, 26, 9).
func NewMACIState(short, long, signal int) *MACIState {
	return &MACIState{
		short: short, long: long, signal: signal,
		closes: newWindow[float64](macdSpan(short, long)),
		line:   newWindow[float64](signal),
	}
}

func (m *MACIState) Name() string {
	return "MACI_" + strconv.Itoa(m.short) + "_" + strconv.Itoa(m.long) + "_" + strconv.Itoa(m.signal)
}

func (m *MACIState) Update(bar model.Bar) {
	m.closes.push(bar.Close)
	m.count++
	// The line starts at index long, i.e. once count exceeds long.
	if m.count > m.long {
		if v, ok := MACD(m.closes.values(), m.short, m.long).Float(); ok {
			m.line.push(v)
		}
	}
	m.current = m.valueAt(m.count, m.line.values())
}

func (m *MACIState) valueAt(count int, line []float64) Value {
	if m.signal <= 0 || m.long <= 0 || count < m.long+m.signal || len(line) < m.signal {
		return Undefined()
	}
	return signalDiff(line, m.signal)
}

func (m *MACIState) Value() Value { return m.current }
func (m *MACIState) Ready() bool  { return m.current.IsDefined() }

// Peek computes what MACI would be with an additional bar without mutating state.
func (m *MACIState) Peek(bar model.Bar) Value {
	count := m.count + 1
	line := m.line.snapshot()
	if count > m.long {
		v, ok := MACD(m.closes.withNext(bar.Close), m.short, m.long).Float()
		if !ok {
			return Undefined()
		}
		line = append(line, v)
	}
	return m.valueAt(count, line)
}

// Reset clears the MACI state for reuse.
func (m *MACIState) Reset() {
	m.closes.reset()
	m.line.reset()
	m.count = 0
	m.current = Undefined()
}

// Snapshot serializes the MACI state for checkpoint persistence.
func (m *MACIState) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type: TypeMACI, Short: m.short, Long: m.long, Signal: m.signal,
		Count: m.count, Closes: m.closes.snapshot(), Line: m.line.snapshot(),
	}
}

// RestoreFromSnapshot restores MACI state from a checkpoint.
func (m *MACIState) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expectMACD(TypeMACI, m.short, m.long, m.signal); err != nil {
		return err
	}
	m.count = snap.Count
	m.closes.restore(snap.Closes)
	m.line.restore(snap.Line)
	m.current = m.valueAt(m.count, m.line.values())
	return nil
}
