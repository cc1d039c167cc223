// Package wire maps Go value types to wire descriptors and marshals values
// according to them.
//
// Every exchange in dMPI is typed: the sender encodes its values with the
// descriptor of their type and the receiver decodes with the descriptor of the
// type it expects. The descriptor of a type depends on nothing but the type,
// so all ranks agree on it without a handshake. No type information travels
// with the data; a receiver that expects a different layout than the sender
// used gets corrupted or truncated values, not an error.
//
// Key Components:
//
//   - Scalar: constraint of all types with a primitive descriptor (bool,
//     integers of all widths, floats, complex numbers). A Scalar value is sent
//     as one element, a []T with a Scalar T as a sequence of elements.
//
//   - DescriptorFor / PrimitiveCodec: descriptor and codec of a scalar type,
//     cached per type.
//
//   - Builder / Type: two phase construction of composite layouts. Contiguous,
//     ContiguousOf, Struct and Reflect validate a layout and return a Builder;
//     only the *Type returned by Builder.Commit is accepted by transfers.
//
// Wire Format:
//
//	Elements are packed without padding, primitives in little endian.
//	bool       4 bytes (0 or 1), decoded as true for any non-zero value
//	int, uint  8 bytes, whatever the size on the host
//	complexN   real part followed by imaginary part
//
// There is no extended precision float, Go has no host type for it.
package wire
