package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Alphabet36 is the digit set used by cell identifiers, in value order.
const Alphabet36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// ZigZagEncode maps a signed integer onto an unsigned one so that values of
// small magnitude stay small: 0→0, -1→1, 1→2, -2→3, 2→4, ...
func ZigZagEncode(n int64) uint64 {
	return uint64(n<<1) ^ uint64(n>>63)
}

// ZigZagDecode is the inverse of ZigZagEncode.
func ZigZagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// Base36Encode encodes n with the digits 0-9a-z, most significant first.
// Zero encodes as "0".
func Base36Encode(n uint64) string {
	return strconv.FormatUint(n, 36)
}

// Base36EncodeInt is Base36Encode for signed callers. Negative values have no
// base-36 form and are rejected.
func Base36EncodeInt(n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: base36 requires a non-negative integer, got %d", ErrInvalidArgument, n)
	}
	return Base36Encode(uint64(n)), nil
}

// Base36Decode decodes a lowercase base-36 string.
func Base36Decode(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty base36 string", ErrInvalidArgument)
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet36, s[i]) < 0 {
			return 0, fmt.Errorf("%w: invalid base36 character %q at offset %d", ErrInvalidArgument, s[i], i)
		}
	}
	n, err := strconv.ParseUint(s, 36, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return n, nil
}

// EncodeCellID converts a cell coordinate into its identifier:
//
//	<len(col)><col><len(row)><row>
//
// where col and row are the zigzag + base-36 forms of the coordinates and each
// length is a single base-36 digit. The result uses only [0-9a-z] and the
// origin cell encodes as "1010".
func EncodeCellID(c Cell) string {
	col := Base36Encode(ZigZagEncode(c.Col))
	row := Base36Encode(ZigZagEncode(c.Row))

	var b strings.Builder
	b.Grow(len(col) + len(row) + 2)
	b.WriteByte(Alphabet36[len(col)])
	b.WriteString(col)
	b.WriteByte(Alphabet36[len(row)])
	b.WriteString(row)
	return b.String()
}

// DecodeCellID is the inverse of EncodeCellID. Truncated input, characters
// outside the alphabet, bad length prefixes and trailing characters all fail
// with ErrMalformedCellID.
func DecodeCellID(id string) (Cell, error) {
	col, rest, err := readComponent(id)
	if err != nil {
		return Cell{}, fmt.Errorf("%w %q: column: %w", ErrMalformedCellID, id, err)
	}
	row, rest, err := readComponent(rest)
	if err != nil {
		return Cell{}, fmt.Errorf("%w %q: row: %w", ErrMalformedCellID, id, err)
	}
	if rest != "" {
		return Cell{}, fmt.Errorf("%w %q: %d trailing characters", ErrMalformedCellID, id, len(rest))
	}
	return Cell{Col: col, Row: row}, nil
}

// readComponent consumes one length-prefixed component from s.
func readComponent(s string) (int64, string, error) {
	if s == "" {
		return 0, "", fmt.Errorf("unexpected end of input")
	}
	n := strings.IndexByte(Alphabet36, s[0])
	if n < 0 {
		return 0, "", fmt.Errorf("invalid length prefix %q", s[0])
	}
	if n == 0 {
		return 0, "", fmt.Errorf("zero length prefix")
	}
	if n > len(s)-1 {
		return 0, "", fmt.Errorf("length prefix %d exceeds remaining %d characters", n, len(s)-1)
	}
	u, err := Base36Decode(s[1 : 1+n])
	if err != nil {
		return 0, "", err
	}
	return ZigZagDecode(u), s[1+n:], nil
}
