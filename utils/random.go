package utils

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"
)

// TicketAlphabet is the 32-symbol charset for ticket codes. It excludes
// characters that are easy to misread on a printed ticket (0/O, 1/I).
const TicketAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	TicketPrefix     = "CALABA"
	TicketCodeLength = 5
)

// TicketCode draws one candidate ticket code from the given source, in the
// form CALABA-XXXXX. Uniqueness is the allocator's job, not this function's.
func TicketCode(rnd *rand.Rand) string {
	buf := make([]byte, 0, len(TicketPrefix)+1+TicketCodeLength)
	buf = append(buf, TicketPrefix...)
	buf = append(buf, '-')
	for i := 0; i < TicketCodeLength; i++ {
		buf = append(buf, TicketAlphabet[rnd.Intn(len(TicketAlphabet))])
	}
	return string(buf)
}

// Seed returns a crypto-derived seed for a per-call rand source.
func Seed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
}

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// PurchaseID builds an opaque record id such as purchase_1757410096123_k3j9x2m4q.
// The prefix identifies the originating payment path.
func PurchaseID(prefix string) (string, error) {
	suffix := make([]byte, 9)
	if _, err := crand.Read(suffix); err != nil {
		return "", err
	}
	for i := range suffix {
		suffix[i] = idCharset[int(suffix[i])%len(idCharset)]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), string(suffix)), nil
}
