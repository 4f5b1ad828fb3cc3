// Package resp implements the wire protocol spoken between server and
// clients: a RESP-compatible, line-oriented framing of simple strings,
// errors, integers, bulk byte strings, nulls and arrays.
//
// The package has two layers:
//
//   - The frame codec: Check validates that a complete frame is present
//     in a byte buffer without allocating, Parse materializes it, and
//     Write serializes a frame to a buffered sink. Parsing is
//     restartable: on ErrIncomplete the caller reads more bytes and
//     retries without consuming anything.
//
//   - Connection: owns a socket plus a growing read buffer and exposes
//     ReadFrame/WriteFrame. A peer closing cleanly at a frame boundary
//     is reported as (nil, nil); closing mid-frame is a protocol
//     violation.
//
// Wire format:
//
//	+<str>\r\n                simple string
//	-<str>\r\n                error
//	:<int>\r\n                integer
//	$<n>\r\n<n bytes>\r\n     bulk string, n >= 0
//	$-1\r\n                   null
//	*<n>\r\n<n elements>      array, n >= 0
//	*-1\r\n                   null
//
// Negative bulk or array lengths other than -1 are protocol errors.
package resp
