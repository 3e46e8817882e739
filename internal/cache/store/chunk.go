package store

import "encoding/json"

// chunkCount returns how many roughly-equal chunks a value of byteSize bytes
// needs under maxChunkBytes, always at least 1.
func chunkCount(byteSize, maxChunkBytes int) int {
	if maxChunkBytes <= 0 {
		return 1
	}
	n := (byteSize + maxChunkBytes - 1) / maxChunkBytes
	if n < 1 {
		n = 1
	}
	return n
}

// distributeBySize packs elems into exactly n ordered buckets, greedily
// closing a bucket once it reaches its share of the total byte size. Order
// is preserved across bucket boundaries so concatenating the buckets in
// order reconstructs the original sequence.
func distributeBySize(elems []json.RawMessage, n int) [][]json.RawMessage {
	buckets := make([][]json.RawMessage, n)
	if n <= 1 || len(elems) == 0 {
		buckets[0] = elems
		return buckets
	}

	total := 0
	for _, e := range elems {
		total += len(e)
	}
	target := total / n
	if target <= 0 {
		target = 1
	}

	bi, size := 0, 0
	for _, e := range elems {
		if bi < n-1 && size >= target {
			bi++
			size = 0
		}
		buckets[bi] = append(buckets[bi], e)
		size += len(e)
	}
	return buckets
}

// decodeArray splits a marshaled JSON array into its raw elements.
func decodeArray(raw []byte) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	return elems, nil
}

// isJSONArray reports whether raw's first non-whitespace byte opens an array.
func isJSONArray(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
