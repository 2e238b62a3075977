package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashObject computes the git object id of data: SHA-1 over the envelope
// "type len\0content".
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
