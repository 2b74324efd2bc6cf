// Package sidechannel models the timing side channel of hunting-and-pecking.
//
// An attacker who can measure how many iterations the reference generator
// needs for each exchange, and who knows the identifiers used, can replay the
// derivation for every password in a dictionary and discard the passwords
// whose iteration counts differ. NarrowCandidates implements that attack
// against an IterationOracle, which only ever exposes iteration counts.
//
// Distribution and TotalVariation compare the iteration counts of two
// secrets; they are used to show that the reference generator separates
// secrets while the fixed-effort generator does not.
package sidechannel
