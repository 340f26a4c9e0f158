// Package wire defines Kaze's header schema and its binary encoding: a
// compact tag/length/value scheme, analogous to the protobuf schema the
// original implementation used for its header but treated here as purely
// an implementation detail (spec.md §1, §6 — "only its fields matter").
//
// Encoding is a sequence of fields, each:
//
//	tag (1 byte) | len (u32 LE) | value (len bytes)
//
// terminated by tag 0x00. Tags:
//
//	0x01  body_type     string
//	0x02  src_ident     u32 LE
//	0x03  ret_code      u32 LE
//	0x04  version       u32 LE
//	0x05  timeout_ms    u32 LE
//	0x06  header entry  key-len(u16 LE) | key bytes | value bytes (one per entry, repeatable)
//	0x07  rpc           kind(1 byte) | seq(u32 LE) if kind != None
//	0x08  route         kind(1 byte) | route-specific payload (see RouteType)
//
// Unknown tags are not supported — a strict schema makes "dirty" headers
// round-trip byte-identically, which the zero-copy forwarding path in
// internal/packet depends on.
package wire
