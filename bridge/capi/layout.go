package capi

import "github.com/rubiojr/bindgen/contract"

// pointerSize is the width of a C pointer on the supported 64-bit targets.
const pointerSize = 8

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// Stride returns the C size of the proxy record of s: members in
// declaration order, each aligned to its own width, the whole padded to the
// widest member.
func Stride(s *contract.StructDesc) int {
	size, maxAlign := 0, 1
	for _, f := range proxyFields(s) {
		width := pointerSize
		if f.Direct {
			width = f.Type.Width()
		}
		size = alignUp(size, width) + width
		if width > maxAlign {
			maxAlign = width
		}
	}
	return alignUp(size, maxAlign)
}
