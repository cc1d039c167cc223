// Package common provides core data structures and utilities shared across
// dMPI. It defines the frame protocol, configuration structures, the error
// taxonomy and the logging setup used by the other packages.
//
// Key Components:
//
//   - Envelope: the unit exchanged between ranks. It carries the matching
//     information (context, source, tag), the element count and the
//     marshalled payload.
//
//   - FrameKind: data frames and abort frames.
//
//   - WorldConfig: membership of this process in the world group (rank, size,
//     endpoints) plus transport, serialization and logging settings.
//
//   - Error / RetCode: locally detectable failures (InvalidRank,
//     MalformedLayout, TypeNotCommitted, AlreadyCommitted, ...). Errors
//     compare by code with errors.Is.
//
//   - Logger: custom logging implementation plugged into Dragonboat's logger
//     facade, giving every package the same output format.
package common
