// Package conformance holds the properties every dMPI world must satisfy,
// as checks that run inside a world.
//
// Every rank runs the same checks in the same order:
//
//	for _, r := range conformance.Run(env.World(), conformance.Checks()) {
//		if r.Err != nil { ... }
//	}
//
// The checks are used by the test suites of every transport and by
// the "dmpi check" command.
package conformance
