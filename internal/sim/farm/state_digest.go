package farm

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

func (s *Sim) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(s.farm.Width()))
	digestWriteU64(h, &tmp, uint64(s.farm.Height()))

	s.farm.Each(func(f *Field) {
		st := f.State()
		h.Write([]byte{boolByte(st.Plowed), boolByte(st.Planted), boolByte(st.Watered)})
		if at, ok := f.PlantedAt(); ok {
			digestWriteI64(h, &tmp, at.UnixNano())
		} else {
			digestWriteI64(h, &tmp, 0)
		}
		holder, _ := f.AssignedWorker()
		digestWriteString(h, &tmp, string(holder))
	})

	for _, a := range s.agents {
		digestWriteString(h, &tmp, string(a.ID))
		digestWriteU64(h, &tmp, math.Float64bits(a.Pos.Row))
		digestWriteU64(h, &tmp, math.Float64bits(a.Pos.Col))
		if t, ok := a.CurrentTask(); ok {
			digestWriteString(h, &tmp, string(t.Kind))
			digestWriteU64(h, &tmp, uint64(t.Field.Row()))
			digestWriteU64(h, &tmp, uint64(t.Field.Col()))
		} else {
			digestWriteString(h, &tmp, "")
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
