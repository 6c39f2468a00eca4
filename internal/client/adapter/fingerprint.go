package adapter

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/boardsync/internal/models"
)

// Fingerprint вычисляет 64-битный хеш геометрии объекта (позиция, поворот,
// масштаб). Совпадение fingerprint означает, что перерисовка не нужна и
// обновление можно не отправлять.
func Fingerprint(g models.Geometry) uint64 {
	// blake2b.New возвращает ошибку только для неверного размера или ключа
	h, _ := blake2b.New(8, nil)

	var buf [8]byte
	for _, v := range [...]float64{g.X, g.Y, g.Rotation, g.ScaleX, g.ScaleY} {
		if v == 0 {
			v = 0 // -0 и +0 считаются одинаковыми
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}

	return binary.LittleEndian.Uint64(h.Sum(nil))
}
