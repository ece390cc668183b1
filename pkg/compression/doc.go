/*
Package compression provides optional GZIP compression of the AS2 content
part before it is signed, per spec.md §4.7 step 2's "decompress where
applicable".

Compress a body before handing it to as2transport:

	compressor := compression.NewCompressor()
	compressed, err := compressor.Compress(payload)

Decompress on the receiving side:

	decompressed, err := compressor.Decompress(compressed)

as2transport drives both calls directly (Request.Compress on send,
Content-Encoding: gzip detection on receive); most callers never import
this package themselves.
*/
package compression
