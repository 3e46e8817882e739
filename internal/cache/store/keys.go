package store

import "fmt"

func versionKey(baseKey string, idx int) string { return fmt.Sprintf("%s:%d", baseKey, idx) }

func chunksKey(key string) string { return key + ":chunks" }

func chunkKey(key string, i int) string { return fmt.Sprintf("%s:chunk:%d", key, i) }

func metaKey(key string) string { return key + ":meta" }

func checksumKey(key string) string { return key + ":checksum" }

func currentIndexKey(baseKey string) string { return baseKey + ":current_index" }

func indicesKey(baseKey string) string { return baseKey + ":indices" }
