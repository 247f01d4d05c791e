// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"encoding/json"

	"github.com/DataDog/zstd"
)

// compressionThreshold is the minimum envelope size, in bytes, below which
// zstd compression is skipped (small frames such as handshakes and
// best-height queries are not worth the header overhead).
const compressionThreshold = 256

// encodeFrame serializes env to JSON and zstd-compresses the result when it
// is large enough to be worthwhile, per the teacher's pattern of only
// paying compression overhead on sizeable payloads (block/body gossip).
func encodeFrame(env *Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if len(raw) < compressionThreshold {
		return append([]byte{0}, raw...), nil
	}
	compressed, err := zstd.Compress(nil, raw)
	if err != nil {
		return nil, err
	}
	return append([]byte{1}, compressed...), nil
}

// decodeHandshake unmarshals a handshake payload, reporting success.
func decodeHandshake(payload []byte, out *HandshakePayload) bool {
	return json.Unmarshal(payload, out) == nil
}

// decodeFrame reverses encodeFrame.
func decodeFrame(frame []byte) (*Envelope, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	flag, body := frame[0], frame[1:]
	if flag == 1 {
		raw, err := zstd.Decompress(nil, body)
		if err != nil {
			return nil, err
		}
		body = raw
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
