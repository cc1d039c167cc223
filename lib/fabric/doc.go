// Package fabric is the message substrate of dMPI. It moves already encoded
// payloads between the ranks of a world and matches them against receives.
//
// A Fabric owns the peer transports of one rank. Every message carries the
// context of its group, the group rank of the sender and a tag; receives match
// on (source, tag) within a context and messages from one source with the same
// tag are received in the order they were sent.
//
// Data Flow:
//
//	Isend -> queue of the destination -> writer (encode, serialize) -> transport
//	transport -> handler (deserialize) -> inbound queue -> dispatcher -> mailbox
//
// There is one outbound queue and one writer per destination (a rank sends to
// itself through its own queue), and one dispatcher per fabric. The payload of
// a send is produced on the writer, so a sender keeps its buffer until the Op
// returned by Isend completed.
//
// Collectives:
//
// Collective traffic of a group travels in the collective context of the
// group, so point-to-point receives (including AnyTag) never match it.
//
//	Bcast      binomial tree
//	Reduce     binomial tree, combined at every inner node
//	Allreduce  Reduce to rank 0 followed by Bcast from rank 0
//	Gather     linear, root receives in rank order
//	Scatter    linear
//	Alltoall   every member sends to every other member
//	Barrier    fan in at rank 0, fan out
//
// Termination:
//
// Close(true) runs a barrier with every rank before the transports are shut
// down. Abort sends an abort frame to every member of a group; on every rank
// that receives it pending and future operations fail with ErrAborted and the
// abort handler is called.
package fabric
