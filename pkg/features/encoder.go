package features

// UnseenCode is returned for a categorical value that was not in the
// encoder's training vocabulary. Trained codes are always >= 0.
const UnseenCode = -1

// Encoder maps a categorical value to the integer code used in training.
type Encoder struct {
	codes map[string]int
}

// NewEncoder builds an encoder from the trained classes; a class's code is
// its index in the list.
func NewEncoder(classes []string) *Encoder {
	e := &Encoder{codes: make(map[string]int, len(classes))}
	for i, c := range classes {
		if _, dup := e.codes[c]; !dup {
			e.codes[c] = i
		}
	}
	return e
}

// Encode returns the trained code for value, or UnseenCode.
func (e *Encoder) Encode(value string) int {
	if code, ok := e.codes[value]; ok {
		return code
	}
	return UnseenCode
}

// Size is the number of trained classes.
func (e *Encoder) Size() int {
	return len(e.codes)
}

// Encoders holds the optional per-feature encoder table.
type Encoders map[string]*Encoder

// Lookup returns the encoder for feature, if any.
func (es Encoders) Lookup(feature string) (*Encoder, bool) {
	if es == nil {
		return nil, false
	}
	e, ok := es[feature]
	return e, ok && e != nil
}
