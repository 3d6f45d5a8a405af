package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/iammatthias/office-space/pkg/types"
)

// encoder packs a sample array into a single cache value: a small header,
// delta-of-delta encoded unix-nano timestamps, and XOR-encoded value bits,
// each section compressed with zstd.
type encoder struct {
	zw *zstd.Encoder
	zr *zstd.Decoder
}

func newEncoder(level int) (*encoder, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &encoder{zw: zw, zr: zr}, nil
}

// encodeSeries serializes samples into one value payload.
// Layout: count uint32 | tsLen uint32 | ts block | value block.
func (e *encoder) encodeSeries(samples []types.Sample) ([]byte, error) {
	ts := make([]int64, len(samples))
	vals := make([]float64, len(samples))
	for i, s := range samples {
		ts[i] = s.Timestamp.UnixNano()
		vals[i] = s.Value
	}

	tsBlock, err := e.compressTimestamps(ts)
	if err != nil {
		return nil, fmt.Errorf("failed to compress timestamps: %w", err)
	}

	valBlock, err := e.compressValues(vals)
	if err != nil {
		return nil, fmt.Errorf("failed to compress values: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(samples))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(tsBlock))); err != nil {
		return nil, err
	}
	buf.Write(tsBlock)
	buf.Write(valBlock)

	return buf.Bytes(), nil
}

// decodeSeries reverses encodeSeries.
func (e *encoder) decodeSeries(data []byte) ([]types.Sample, error) {
	rd := bytes.NewReader(data)

	var count, tsLen uint32
	if err := binary.Read(rd, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := binary.Read(rd, binary.LittleEndian, &tsLen); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	rest := data[8:]
	if uint32(len(rest)) < tsLen {
		return nil, fmt.Errorf("truncated payload: ts block %d > %d bytes", tsLen, len(rest))
	}

	ts, err := e.decompressTimestamps(rest[:tsLen], int(count))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress timestamps: %w", err)
	}

	vals, err := e.decompressValues(rest[tsLen:], int(count))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress values: %w", err)
	}

	samples := make([]types.Sample, count)
	for i := 0; i < int(count); i++ {
		samples[i] = types.Sample{
			Timestamp: nanoTime(ts[i]),
			Value:     vals[i],
		}
	}

	return samples, nil
}

// compressTimestamps applies delta-of-delta encoding followed by zstd.
func (e *encoder) compressTimestamps(timestamps []int64) ([]byte, error) {
	if len(timestamps) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, timestamps[0]); err != nil {
		return nil, err
	}

	var prevDelta int64
	for i := 1; i < len(timestamps); i++ {
		delta := timestamps[i] - timestamps[i-1]
		if err := binary.Write(buf, binary.LittleEndian, delta-prevDelta); err != nil {
			return nil, err
		}
		prevDelta = delta
	}

	return e.zw.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len())), nil
}

func (e *encoder) decompressTimestamps(data []byte, count int) ([]int64, error) {
	if count == 0 {
		return nil, nil
	}

	decompressed, err := e.zr.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	// The count comes from the untrusted payload header; verify it against
	// the decompressed block before allocating anything sized by it.
	if len(decompressed) != 8*count {
		return nil, fmt.Errorf("timestamp block is %d bytes, expected %d for %d samples",
			len(decompressed), 8*count, count)
	}

	rd := bytes.NewReader(decompressed)
	timestamps := make([]int64, count)
	if err := binary.Read(rd, binary.LittleEndian, &timestamps[0]); err != nil {
		return nil, err
	}

	var prevDelta int64
	for i := 1; i < count; i++ {
		var deltaOfDelta int64
		if err := binary.Read(rd, binary.LittleEndian, &deltaOfDelta); err != nil {
			return nil, err
		}
		delta := deltaOfDelta + prevDelta
		timestamps[i] = timestamps[i-1] + delta
		prevDelta = delta
	}

	return timestamps, nil
}

// compressValues applies XOR encoding of float bits followed by zstd.
func (e *encoder) compressValues(values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, math.Float64bits(values[0])); err != nil {
		return nil, err
	}

	prevBits := math.Float64bits(values[0])
	for i := 1; i < len(values); i++ {
		currentBits := math.Float64bits(values[i])
		if err := binary.Write(buf, binary.LittleEndian, currentBits^prevBits); err != nil {
			return nil, err
		}
		prevBits = currentBits
	}

	return e.zw.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len())), nil
}

func (e *encoder) decompressValues(data []byte, count int) ([]float64, error) {
	if count == 0 {
		return nil, nil
	}

	decompressed, err := e.zr.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	if len(decompressed) != 8*count {
		return nil, fmt.Errorf("value block is %d bytes, expected %d for %d samples",
			len(decompressed), 8*count, count)
	}

	rd := bytes.NewReader(decompressed)
	values := make([]float64, count)

	var firstBits uint64
	if err := binary.Read(rd, binary.LittleEndian, &firstBits); err != nil {
		return nil, err
	}
	values[0] = math.Float64frombits(firstBits)

	prevBits := firstBits
	for i := 1; i < count; i++ {
		var xorBits uint64
		if err := binary.Read(rd, binary.LittleEndian, &xorBits); err != nil {
			return nil, err
		}
		currentBits := xorBits ^ prevBits
		values[i] = math.Float64frombits(currentBits)
		prevBits = currentBits
	}

	return values, nil
}

func (e *encoder) close() {
	if e.zw != nil {
		e.zw.Close()
	}
	if e.zr != nil {
		e.zr.Close()
	}
}
