package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
)

// Buffer slots, in binding order. The kernel signature must match.
const (
	SlotInput      = iota // input bytes (read-only)
	SlotDigest            // output digest, 32 bytes
	SlotDifficulty        // target, 32 bytes big-endian
	SlotInputLen          // input length, u32 LE
	SlotNonce             // output nonce, u64 LE
	SlotFound             // found flag, u32 LE, non-zero when found
	SlotThreads           // total threads, u64 LE
	SlotBaseNonce         // first nonce of the grid, u64 LE
	SlotIterations        // attempts per thread, u64 LE, 0 = until wrap

	NumSlots
)

// Record sizes in bytes.
const (
	DigestSize = common.HashLength
	NonceSize  = 8
	FlagSize   = 4
	lenSize    = 4
	u64Size    = 8
)

// slotNames is used in error messages.
var slotNames = [NumSlots]string{
	"input", "digest", "difficulty", "input_len", "nonce",
	"found", "threads", "base_nonce", "iterations",
}

// SlotName returns the name of slot i.
func SlotName(i int) string {
	if i < 0 || i >= NumSlots {
		return fmt.Sprintf("slot%d", i)
	}
	return slotNames[i]
}

// Params are the scalar kernel arguments of one dispatch.
type Params struct {
	InputLen   uint32
	Threads    uint64
	BaseNonce  uint64
	Iterations uint64
}

// Records are the decoded outputs of one dispatch.
type Records struct {
	Digest common.Hash
	Nonce  uint64
	Found  bool
}

func encodeU32(v uint32) []byte {
	b := make([]byte, lenSize)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func encodeU64(v uint64) []byte {
	b := make([]byte, u64Size)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeU32(b []byte, slot int) (uint32, error) {
	if len(b) < lenSize {
		return 0, shortRecord(slot, len(b), lenSize)
	}
	return binary.LittleEndian.Uint32(b), nil
}

func decodeU64(b []byte, slot int) (uint64, error) {
	if len(b) < u64Size {
		return 0, shortRecord(slot, len(b), u64Size)
	}
	return binary.LittleEndian.Uint64(b), nil
}

func decodeDigest(b []byte) (common.Hash, error) {
	if len(b) < DigestSize {
		return common.Hash{}, shortRecord(SlotDigest, len(b), DigestSize)
	}
	return common.BytesToHash(b[:DigestSize]), nil
}

func decodeNonce(b []byte) (uint64, error) {
	return decodeU64(b, SlotNonce)
}

// Found flag values. A kernel holds foundClaimed while it writes the
// records and publishes foundPublished once they are complete.
const (
	foundClaimed   uint32 = 2
	foundPublished uint32 = 1
)

func decodeFound(b []byte) (bool, error) {
	v, err := decodeU32(b, SlotFound)
	return v == foundPublished, err
}

func shortRecord(slot, got, want int) error {
	return fmt.Errorf("%w: %s record is %d bytes, need %d", miner.ErrPipeline, SlotName(slot), got, want)
}

// DecodeParams reads the scalar arguments back out of bound slots.
// Kernels use it to unpack their inputs.
func DecodeParams(slots []Buffer) (Params, error) {
	if len(slots) != NumSlots {
		return Params{}, fmt.Errorf("%w: %d slots bound, kernel expects %d", miner.ErrPipeline, len(slots), NumSlots)
	}
	var (
		p   Params
		err error
	)
	if p.InputLen, err = decodeU32(slots[SlotInputLen].Contents(), SlotInputLen); err != nil {
		return p, err
	}
	if p.Threads, err = decodeU64(slots[SlotThreads].Contents(), SlotThreads); err != nil {
		return p, err
	}
	if p.BaseNonce, err = decodeU64(slots[SlotBaseNonce].Contents(), SlotBaseNonce); err != nil {
		return p, err
	}
	if p.Iterations, err = decodeU64(slots[SlotIterations].Contents(), SlotIterations); err != nil {
		return p, err
	}
	if int(p.InputLen) > slots[SlotInput].Len() {
		return p, fmt.Errorf("%w: input_len %d exceeds input buffer of %d bytes", miner.ErrPipeline, p.InputLen, slots[SlotInput].Len())
	}
	return p, nil
}

// DecodeTarget reads the difficulty slot.
func DecodeTarget(slots []Buffer) (difficulty.Target, error) {
	t, err := difficulty.TargetFromBytes(slots[SlotDifficulty].Contents())
	if err != nil {
		return t, fmt.Errorf("%w: difficulty slot: %v", miner.ErrPipeline, err)
	}
	return t, nil
}

// readRecords decodes the output slots after a dispatch.
func readRecords(slots []Buffer) (Records, error) {
	var (
		r   Records
		err error
	)
	if r.Found, err = decodeFound(slots[SlotFound].Contents()); err != nil {
		return r, err
	}
	if !r.Found {
		return r, nil
	}
	if r.Digest, err = decodeDigest(slots[SlotDigest].Contents()); err != nil {
		return r, err
	}
	if r.Nonce, err = decodeNonce(slots[SlotNonce].Contents()); err != nil {
		return r, err
	}
	return r, nil
}
