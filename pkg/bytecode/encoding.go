package bytecode

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal code always encodes to
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes compiled code, nested functions included, to CBOR.
// Regexp programs are not serialized; see RegexpLiteral.
func Marshal(c *CompiledCode) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// Unmarshal deserializes compiled code from CBOR bytes.
func Unmarshal(data []byte) (*CompiledCode, error) {
	var c CompiledCode
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal code: %w", err)
	}
	if c.Version != BytecodeVersion {
		return nil, fmt.Errorf("bytecode: unsupported version %d (expected %d)", c.Version, BytecodeVersion)
	}
	return &c, nil
}

// Fingerprint returns the SHA-256 of the canonical encoding of c.
func Fingerprint(c *CompiledCode) ([32]byte, error) {
	data, err := Marshal(c)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// WalkRegexps calls fn for every regexp literal in c and its nested
// functions. Used to reattach compiled programs after Unmarshal.
func WalkRegexps(c *CompiledCode, fn func(*RegexpLiteral) error) error {
	for i := range c.Literals {
		lit := &c.Literals[i]
		switch lit.Kind {
		case LiteralRegexp:
			if lit.Regexp != nil {
				if err := fn(lit.Regexp); err != nil {
					return err
				}
			}
		case LiteralFunction:
			if lit.Function != nil {
				if err := WalkRegexps(lit.Function, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
