package chips

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// Splitter assigns a scene to a dataset split ("train" or "valid"). All chips
// of a scene go to the same split so train and validation never share pixels.
type Splitter interface {
	Split(scene string) string
}

// DefaultSplit sends about one scene in five to the validation split.
var DefaultSplit = HashSplit{NumFolds: 5, ValidFolds: 1}

// HashSplit splits scenes into NumFolds folds by hashing the scene name with
// Seed, and sends the first ValidFolds folds to the validation split. The
// assignment depends only on (Seed, scene), so re-running it is stable.
type HashSplit struct {
	NumFolds   int
	ValidFolds int
	Seed       int32
}

// Split implements Splitter.
func (h HashSplit) Split(scene string) string {
	if h.NumFolds <= 0 || h.ValidFolds <= 0 {
		return TrainSplit
	}
	if h.fold(scene) < h.ValidFolds {
		return ValidSplit
	}
	return TrainSplit
}

func (h HashSplit) fold(scene string) int {
	var buffer bytes.Buffer
	_ = binary.Write(&buffer, binary.LittleEndian, h.Seed)
	buffer.WriteString(scene)
	return int(crc32.ChecksumIEEE(buffer.Bytes()) % uint32(h.NumFolds))
}
