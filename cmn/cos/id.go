package cos

import (
	"crypto/rand"
	"strings"

	"github.com/teris-io/shortid"
)

// crockford32 avoids visually ambiguous characters (no I, L, O, U), the same
// motivation behind the teacher's own uuidABC alphabet in cmn/cos/uuid.go.
const crockford32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	timeBits   = 48 // milliseconds since epoch, enough until year 10889
	randBytes  = 10 // 80 bits of randomness, matches a ULID's random component
	destIDLen  = 26 // 130 bits encoded in base32, one char of slack like ULID
)

var sid *shortid.Shortid

func init() {
	s, err := shortid.New(1, shortid.DefaultABC, 1)
	if err != nil {
		panic(err)
	}
	sid = s
}

// GenDestinationID returns a 128-bit, lexicographically sortable ID: a
// millisecond timestamp prefix followed by cryptographically random bits,
// both base32-encoded with a Crockford-style alphabet. Two IDs generated in
// the same millisecond sort by their random suffix; IDs generated later
// always sort after IDs generated earlier. This is the destination/listener
// ID handed back from Registry.AddListener (§4.5 of the spec).
func GenDestinationID(nowUnixMilli int64) string {
	var buf [timeBits/8 + randBytes]byte
	ts := uint64(nowUnixMilli)
	for i := timeBits/8 - 1; i >= 0; i-- {
		buf[i] = byte(ts & 0xff)
		ts >>= 8
	}
	if _, err := rand.Read(buf[timeBits/8:]); err != nil {
		panic("cos: failed to read crypto/rand: " + err.Error())
	}
	return encodeBase32(buf[:])
}

func encodeBase32(b []byte) string {
	var sb strings.Builder
	sb.Grow(destIDLen)
	var acc uint32
	var bits uint
	for _, by := range b {
		acc = acc<<8 | uint32(by)
		bits += 8
		for bits >= 5 {
			bits -= 5
			sb.WriteByte(crockford32[(acc>>bits)&0x1f])
		}
	}
	if bits > 0 {
		sb.WriteByte(crockford32[(acc<<(5-bits))&0x1f])
	}
	return sb.String()
}

// GenTaskTag returns a short, non-sortable correlation tag for log lines
// emitted by fan-out tasks (one per shard fetch, one per iterator mint).
// Unlike GenDestinationID, ordering does not matter here, so this defers to
// teris-io/shortid the way the teacher's GenUUID does.
func GenTaskTag() string {
	return sid.MustGenerate()
}
