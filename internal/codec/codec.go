// Package codec кодирует обновления документа (Delta) в бинарный формат,
// который транспорт передает как непрозрачную последовательность байт.
//
// Формат: первый байт - версия формата, далее CBOR (Core Deterministic
// Encoding) модели models.Delta. Крупные обновления (например, полное
// состояние комнаты при init) дополнительно сжимаются zstd.
package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/iudanet/boardsync/internal/models"
)

// Версии формата (первый байт payload)
const (
	formatCBOR     byte = 0x01
	formatCBORZstd byte = 0x02
)

// compressThreshold размер CBOR, начиная с которого пробуем zstd
const compressThreshold = 1024

// maxDecodedSize ограничивает размер распакованного обновления
const maxDecodedSize = 64 << 20

// ErrDecode означает, что payload поврежден или имеет неизвестный формат.
// Вызывающий код логирует ошибку и отбрасывает payload.
var ErrDecode = errors.New("malformed delta payload")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode сериализует обновление в бинарный payload.
func Encode(delta *models.Delta) ([]byte, error) {
	if delta == nil {
		return nil, fmt.Errorf("encode delta: nil delta")
	}

	body, err := encMode.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delta: %w", err)
	}

	if len(body) >= compressThreshold {
		compressed := zstdEncoder.EncodeAll(body, make([]byte, 1, len(body)/2+1))
		// Сжимаем только если это действительно выгодно
		if len(compressed)-1 < len(body) {
			compressed[0] = formatCBORZstd
			return compressed, nil
		}
	}

	payload := make([]byte, 0, len(body)+1)
	payload = append(payload, formatCBOR)
	payload = append(payload, body...)
	return payload, nil
}

// Decode разбирает бинарный payload. Любая ошибка оборачивает ErrDecode.
func Decode(payload []byte) (*models.Delta, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: payload too short (%d bytes)", ErrDecode, len(payload))
	}

	var body []byte
	switch payload[0] {
	case formatCBOR:
		body = payload[1:]
	case formatCBORZstd:
		var err error
		body, err = zstdDecoder.DecodeAll(payload[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrDecode, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format version 0x%02x", ErrDecode, payload[0])
	}

	var delta models.Delta
	if err := decMode.Unmarshal(body, &delta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := validate(&delta); err != nil {
		return nil, err
	}

	return &delta, nil
}

// validate проверяет, что обновление можно безопасно применить к документу
func validate(delta *models.Delta) error {
	for i, entry := range delta.Entries {
		if entry == nil {
			return fmt.Errorf("%w: entry %d is null", ErrDecode, i)
		}
		if entry.ID == "" {
			return fmt.Errorf("%w: entry %d has empty id", ErrDecode, i)
		}
		if entry.Timestamp < 0 {
			return fmt.Errorf("%w: entry %q has negative timestamp", ErrDecode, entry.ID)
		}
	}

	return nil
}
