package dedup

import (
	"strconv"

	"github.com/twmb/murmur3"
)

// URLKey is the 128-bit MurmurHash3 (x64, seed 0) of a canonical URL. It is
// stable across processes, so persisted keys stay valid after a restart.
type URLKey struct {
	Hi uint64
	Lo uint64
}

// KeyOf hashes a canonical URL
func KeyOf(canonical string) URLKey {
	lo, hi := murmur3.Sum128([]byte(canonical))
	return URLKey{Hi: hi, Lo: lo}
}

// String returns the key as lower-case hex of the 128-bit integer Hi<<64|Lo,
// without leading zeros.
func (k URLKey) String() string {
	if k.Hi == 0 {
		return strconv.FormatUint(k.Lo, 16)
	}
	lo := strconv.FormatUint(k.Lo, 16)
	buf := make([]byte, 0, 32)
	buf = strconv.AppendUint(buf, k.Hi, 16)
	for i := len(lo); i < 16; i++ {
		buf = append(buf, '0')
	}
	return string(append(buf, lo...))
}
