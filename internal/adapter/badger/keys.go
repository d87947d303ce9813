package badger

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

var (
	personaPrefix   = []byte("persona/")
	changelogPrefix = []byte("changelog/")
	pendingPrefix   = []byte("pending/")
	auditPrefix     = []byte("audit/")
)

func personaKey(id uuid.UUID) []byte {
	return append(append([]byte{}, personaPrefix...), id[:]...)
}

// historyPrefix is the prefix of every changelog key of one persona.
func historyPrefix(id uuid.UUID) []byte {
	k := append(append([]byte{}, changelogPrefix...), id[:]...)
	return append(k, '/')
}

func entryKey(id uuid.UUID, generation int64) []byte {
	return binary.BigEndian.AppendUint64(historyPrefix(id), uint64(generation))
}

func generationFromKey(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(key)-8:]))
}

func pendingKey(id uuid.UUID) []byte {
	return append(append([]byte{}, pendingPrefix...), id[:]...)
}

func personaIDFromPendingKey(key []byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], key[len(pendingPrefix):])
	return id
}

func auditKey(createdAt time.Time, id uuid.UUID) []byte {
	k := binary.BigEndian.AppendUint64(append([]byte{}, auditPrefix...), uint64(createdAt.UnixNano()))
	return append(k, id[:]...)
}

// seekEnd returns a key sorting after every key that starts with prefix,
// used to start reverse iteration.
func seekEnd(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
