// Package auth parses the system's passwd/group/shadow files and verifies
// crypt(3) SHA-crypt password hashes, the way qinit authenticates a
// service's configured user/group before dropping privileges.
package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// Sha2Mode selects which digest the SHA-crypt algorithm runs underneath:
// Sha256 for the "$5$" scheme, Sha512 for "$6$".
type Sha2Mode int

const (
	Sha256 Sha2Mode = iota
	Sha512
)

const (
	roundsMin     = 1000
	roundsMax     = 999_999_999
	roundsDefault = 5000
)

const b64Table = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func (m Sha2Mode) newHash() hash.Hash {
	if m == Sha256 {
		return sha256.New()
	}
	return sha512.New()
}

func (m Sha2Mode) digestSize() int {
	if m == Sha256 {
		return sha256.Size
	}
	return sha512.Size
}

// CryptSHA2 replicates crypt(3)'s SHA-crypt algorithm (Drepper's
// SHA-crypt.txt), returning the base64 hash portion of a "$5$"/"$6$" crypt
// string for the given salt, password, and round count. A nil rounds
// pointer uses the scheme's default of 5000.
func CryptSHA2(mode Sha2Mode, salt, password []byte, rounds *uint32) (string, error) {
	n := roundsDefault
	if rounds != nil {
		n = int(*rounds)
		if n < roundsMin || n > roundsMax {
			return "", fmt.Errorf("auth: invalid rounds %d", n)
		}
	}

	// digest B: password + salt + password.
	hb := mode.newHash()
	hb.Write(password)
	hb.Write(salt)
	hb.Write(password)
	digestB := hb.Sum(nil)

	// digest A: password + salt + (digest B repeated/truncated to len(password)).
	ha := mode.newHash()
	ha.Write(password)
	ha.Write(salt)
	ha.Write(cycleTake(digestB, len(password)))

	for length := len(password); length > 0; length >>= 1 {
		if length&1 == 1 {
			ha.Write(digestB)
		} else {
			ha.Write(password)
		}
	}
	digestA := ha.Sum(nil)

	// digest DP: password repeated len(password) times.
	hdp := mode.newHash()
	for i := 0; i < len(password); i++ {
		hdp.Write(password)
	}
	digestDP := hdp.Sum(nil)
	p := cycleTake(digestDP, len(password))

	// digest DS: salt repeated 16+digestA[0] times.
	hds := mode.newHash()
	for i := 0; i < 16+int(digestA[0]); i++ {
		hds.Write(salt)
	}
	digestDS := hds.Sum(nil)
	s := cycleTake(digestDS, len(salt))

	prev := digestA
	for round := 0; round < n; round++ {
		hc := mode.newHash()
		if round%2 == 1 {
			hc.Write(p)
		} else {
			hc.Write(prev)
		}
		if round%3 != 0 {
			hc.Write(s)
		}
		if round%7 != 0 {
			hc.Write(p)
		}
		if round%2 == 1 {
			hc.Write(prev)
		} else {
			hc.Write(p)
		}
		prev = hc.Sum(nil)
	}

	return cryptSHA2Base64(mode, prev), nil
}

// cycleTake returns n bytes produced by repeating src (cycling back to its
// start), matching Rust's `.iter().cycle().take(n)`.
func cycleTake(src []byte, n int) []byte {
	if len(src) == 0 || n == 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = src[i%len(src)]
	}
	return out
}

// shuffleStep describes, for each output group, the three source byte
// indices and the number of base64 characters to emit for that group.
type shuffleStep struct {
	a, b, c int
	n       int
}

var sha256Shuffle = []shuffleStep{
	{0, 10, 20, 4}, {21, 1, 11, 4}, {12, 22, 2, 4}, {3, 13, 23, 4},
	{24, 4, 14, 4}, {15, 25, 5, 4}, {6, 16, 26, 4}, {27, 7, 17, 4},
	{18, 28, 8, 4}, {9, 19, 29, 4}, {-1, 31, 30, 3},
}

var sha512Shuffle = []shuffleStep{
	{0, 21, 42, 4}, {22, 43, 1, 4}, {44, 2, 23, 4}, {3, 24, 45, 4},
	{25, 46, 4, 4}, {47, 5, 26, 4}, {6, 27, 48, 4}, {28, 49, 7, 4},
	{50, 8, 29, 4}, {9, 30, 51, 4}, {31, 52, 10, 4}, {53, 11, 32, 4},
	{12, 33, 54, 4}, {34, 55, 13, 4}, {56, 14, 35, 4}, {15, 36, 57, 4},
	{37, 58, 16, 4}, {59, 17, 38, 4}, {18, 39, 60, 4}, {40, 61, 19, 4},
	{62, 20, 41, 4}, {-1, -1, 63, 2},
}

func cryptSHA2Base64(mode Sha2Mode, data []byte) string {
	steps := sha256Shuffle
	if mode == Sha512 {
		steps = sha512Shuffle
	}

	byteAt := func(i int) byte {
		if i < 0 {
			return 0
		}
		return data[i]
	}

	out := make([]byte, 0, mode.digestSize()*4/3+4)
	for _, st := range steps {
		w := uint32(byteAt(st.a))<<16 | uint32(byteAt(st.b))<<8 | uint32(byteAt(st.c))
		offsets := [4]byte{
			byte(w & 0x3f),
			byte((w >> 6) & 0x3f),
			byte((w >> 12) & 0x3f),
			byte((w >> 18) & 0x3f),
		}
		for i := 0; i < st.n; i++ {
			out = append(out, b64Table[offsets[i]])
		}
	}
	return string(out)
}
