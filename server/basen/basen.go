package basen

import "math/big"

const (
	AlphabetBase16 = "0123456789abcdef"
	AlphabetBase62 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var zero big.Int

// Encoder encodes byte slices into an arbitrary-base alphabet. Used to
// shorten UUIDs for client identifiers.
type Encoder struct {
	alphabet string
}

func NewEncoder(alphabet string) *Encoder {
	return &Encoder{alphabet: alphabet}
}

func (e *Encoder) Encode(data []byte) string {
	var value big.Int
	value.SetBytes(data)

	var base big.Int
	baseInt64 := int64(len(e.alphabet))

	result := []byte{}

	for value.Cmp(&zero) != 0 {
		base.SetInt64(baseInt64)
		_, remainder := value.DivMod(&value, &base, &base)
		result = append(result, e.alphabet[remainder.Int64()])
	}

	return string(result)
}
