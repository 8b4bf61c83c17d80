package quotas

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Keys share the pool database with the snapshot, so they live under their
// own prefix: quota/<module>/<epoch>/<account hex> and quota/<module>/<epoch>#accounts.
const keyPrefix = "quota/"

func epochKey(module string, epoch uint64) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(strings.ToLower(strings.TrimSpace(module)))
	b.WriteByte('/')
	b.WriteString(strconv.FormatUint(epoch, 10))
	return b.String()
}

func counterKey(module string, epoch uint64, addr []byte) []byte {
	return []byte(epochKey(module, epoch) + "/" + hex.EncodeToString(addr))
}

func epochIndexKey(module string, epoch uint64) []byte {
	return []byte(epochKey(module, epoch) + "#accounts")
}
