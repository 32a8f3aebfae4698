// Package codec converts cached values to and from the bytes held by the
// primary store. Values in the dictionary tier are never encoded.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Implementations must be safe for concurrent use.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
