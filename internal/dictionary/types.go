package dictionary

import (
	"fmt"
)

// ByteOrder is the bit layout of a signal within its message payload.
type ByteOrder int

const (
	// LittleEndian is Intel byte order: the start bit is the signal's
	// least significant bit.
	LittleEndian ByteOrder = iota
	// BigEndian is Motorola byte order: the start bit is the signal's
	// most significant bit, numbered in DBC sawtooth order.
	BigEndian
)

// Choice is one raw-value to label mapping of an enumerated signal.
// Choices keep their declaration order.
type Choice struct {
	Raw   int64
	Label string
}

// SignalDef describes one named, scaled scalar within a message.
// Definitions are immutable once their registry is built.
type SignalDef struct {
	Name       string
	Message    string
	StartBit   uint
	Length     uint
	ByteOrder  ByteOrder
	Signed     bool
	Scale      float64
	Offset     float64
	Min        *float64
	Max        *float64
	Unit       string
	DTypeHint  string
	Choices    []Choice
	Attributes map[string]interface{}
}

// ChoiceLabel returns the label for a raw value and whether the value
// is in the declared domain.
func (s *SignalDef) ChoiceLabel(raw int64) (string, bool) {
	for _, c := range s.Choices {
		if c.Raw == raw {
			return c.Label, true
		}
	}
	return "", false
}

// Labels returns the declared labels in declaration order.
func (s *SignalDef) Labels() []string {
	labels := make([]string, len(s.Choices))
	for i, c := range s.Choices {
		labels[i] = c.Label
	}
	return labels
}

// MessageDef describes one payload layout identified by a numeric id.
type MessageDef struct {
	ID      uint32
	Name    string
	Length  int
	Signals []*SignalDef
}

// Registry is the merged, queryable view over one or more dictionary
// sources: an id index for decoding and a flattened name index whose
// entries are guaranteed unique.
type Registry struct {
	Messages []*MessageDef

	byID   map[uint32]*MessageDef
	byName map[string]*SignalDef
	order  []string
}

// newRegistry indexes the merged message set. Signal name uniqueness
// must already be established by Build.
func newRegistry(messages []*MessageDef) *Registry {
	r := &Registry{
		Messages: messages,
		byID:     make(map[uint32]*MessageDef),
		byName:   make(map[string]*SignalDef),
	}
	for _, msg := range messages {
		r.byID[msg.ID] = msg
		for _, sig := range msg.Signals {
			r.byName[sig.Name] = sig
			r.order = append(r.order, sig.Name)
		}
	}
	return r
}

// SignalNames returns all signal names in registry order: messages in
// parse order, signals in declaration order.
func (r *Registry) SignalNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Signal looks up a signal definition by flattened name.
func (r *Registry) Signal(name string) (*SignalDef, bool) {
	sig, ok := r.byName[name]
	return sig, ok
}

// MessageByID looks up a message definition by numeric id.
func (r *Registry) MessageByID(id uint32) (*MessageDef, bool) {
	msg, ok := r.byID[id]
	return msg, ok
}

// Decode extracts the physical value of every signal in the message
// identified by id from the raw payload. An unknown id or a payload too
// short for a signal's bit range is a decode error; callers on the
// streaming path treat those as dropped frames, not failures.
func (r *Registry) Decode(id uint32, payload []byte) (map[string]float64, error) {
	msg, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown message id 0x%X", id)
	}

	values := make(map[string]float64, len(msg.Signals))
	for _, sig := range msg.Signals {
		raw, err := extractBits(payload, sig)
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", sig.Name, err)
		}
		values[sig.Name] = float64(raw)*sig.Scale + sig.Offset
	}
	return values, nil
}

// extractBits pulls the signal's raw integer out of the payload,
// sign-extending when the signal is declared signed.
func extractBits(payload []byte, sig *SignalDef) (int64, error) {
	if sig.Length == 0 || sig.Length > 64 {
		return 0, fmt.Errorf("unsupported bit length %d", sig.Length)
	}

	var raw uint64
	switch sig.ByteOrder {
	case LittleEndian:
		for i := uint(0); i < sig.Length; i++ {
			bit := sig.StartBit + i
			byteIdx := bit / 8
			if int(byteIdx) >= len(payload) {
				return 0, fmt.Errorf("payload too short: need byte %d, have %d", byteIdx+1, len(payload))
			}
			if payload[byteIdx]>>(bit%8)&1 == 1 {
				raw |= 1 << i
			}
		}
	case BigEndian:
		bit := sig.StartBit
		for i := uint(0); i < sig.Length; i++ {
			byteIdx := bit / 8
			if int(byteIdx) >= len(payload) {
				return 0, fmt.Errorf("payload too short: need byte %d, have %d", byteIdx+1, len(payload))
			}
			raw = raw<<1 | uint64(payload[byteIdx]>>(bit%8)&1)
			if bit%8 == 0 {
				bit += 15
			} else {
				bit--
			}
		}
	}

	if sig.Signed && raw&(1<<(sig.Length-1)) != 0 {
		return int64(raw | ^uint64(0)<<sig.Length), nil
	}
	return int64(raw), nil
}
