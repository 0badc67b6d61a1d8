// Package difficulty implements the acceptance rule shared by every search
// backend. Digests and targets are 32-byte values read as big-endian unsigned
// 256-bit integers; a digest is accepted when it is <= the target.
//
// The device kernels compare the same bytes most-significant first, so host and
// device agree byte for byte. Changing the byte order here without changing the
// kernels is a correctness bug.
package difficulty

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Size is the width of a target in bytes, equal to the digest width.
const Size = common.HashLength

// ErrWidth is returned when a target is not exactly Size bytes.
var ErrWidth = errors.New("difficulty target must be 32 bytes")

// Target is the inclusive upper bound an accepted digest must satisfy.
type Target [Size]byte

// Accepts reports whether digest <= target under big-endian interpretation.
func Accepts(digest common.Hash, target Target) bool {
	var d, t uint256.Int
	d.SetBytes32(digest[:])
	t.SetBytes32(target[:])
	return !d.Gt(&t)
}

// Accepts is the method form of the package-level Accepts.
func (t Target) Accepts(digest common.Hash) bool {
	return Accepts(digest, t)
}

// TargetFromBytes copies b into a Target. b must be exactly Size bytes.
func TargetFromBytes(b []byte) (Target, error) {
	var t Target
	if len(b) != Size {
		return t, fmt.Errorf("%w: got %d", ErrWidth, len(b))
	}
	copy(t[:], b)
	return t, nil
}

// ParseTarget decodes a 64-digit hex string, with or without 0x prefix.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return Target{}, fmt.Errorf("parse target: %w", err)
	}
	return TargetFromBytes(b)
}

// TargetWithLeadingZeroBytes returns n zero bytes followed by 0xFF bytes.
// n is clamped to [0, Size].
func TargetWithLeadingZeroBytes(n int) Target {
	var t Target
	if n < 0 {
		n = 0
	}
	for i := n; i < Size; i++ {
		t[i] = 0xff
	}
	return t
}

// Max returns the all-0xFF target, which accepts every digest.
func Max() Target {
	return TargetWithLeadingZeroBytes(0)
}

// Bytes returns a copy of the target bytes.
func (t Target) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, t[:])
	return b
}

// Uint256 returns the target as an integer.
func (t Target) Uint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(t[:])
}

// ExpectedAttempts estimates the mean number of hashes needed to find an
// accepted digest: 2^256 / (target+1), saturated to the uint64 range.
func (t Target) ExpectedAttempts() uint64 {
	v := t.Uint256()
	if v.Eq(new(uint256.Int).SetAllOne()) {
		return 1
	}
	// 2^256 does not fit, so divide 2^256-1 and carry the remainder.
	denom := new(uint256.Int).AddUint64(v, 1)
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(new(uint256.Int).SetAllOne(), denom, r)
	if r.AddUint64(r, 1).Eq(denom) {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return math.MaxUint64
	}
	if q.Uint64() == 0 {
		return 1
	}
	return q.Uint64()
}

// String returns the target as 0x-prefixed hex.
func (t Target) String() string {
	return hexutil.Encode(t[:])
}

// MarshalText encodes the target as 0x-prefixed hex.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a hex target.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
