package hash

import "github.com/zeebo/xxh3"

// PathHash returns the XXH3 hash of relativePath's UTF-8 bytes. It is used
// to key the replacement map's loaded-texture table so the same on-disk
// file, referenced from multiple database records, is only ever loaded
// once. XXH3 was picked over the standard library's FNV or CRC because the
// replacement map hashes every resolved path once per directory load and
// XXH3 is built for exactly that kind of short-string, high-throughput
// hashing.
func PathHash(relativePath string) Path {
	return Path(xxh3.HashString(relativePath))
}
