package rdb

import (
	"github.com/zhuyie/golzf"
)

// lzfDecompress inflates an LZF-compressed string, given its compressed
// bytes and the declared decompressed length. It errors if the decoder
// didn't produce exactly that many bytes, the same cross-check the
// length-prefixed wire format exists to make possible.
func lzfDecompress(compressed []byte, decompressedLen int) ([]byte, error) {
	dst := make([]byte, decompressedLen)
	n, err := lzf.Decompress(compressed, dst)
	if err != nil {
		return nil, err
	}
	if n != decompressedLen {
		return nil, errLzfLengthMismatch(n, decompressedLen)
	}
	return dst, nil
}
