// Package dragonfly derives the Dragonfly password element (PE) from a
// password and two peer identifiers with the hunting-and-pecking method used
// by WPA3-SAE and EAP-pwd over a MODP group.
//
// Two generators are provided. GeneratePEVariable is the reference loop: it
// returns the first valid element, so the number of iterations, and with it
// the running time, depends on the password. GeneratePEFixed always runs at
// least KMin iterations, collects a pool of valid elements and returns one
// drawn at random, so the iteration count no longer depends on the password.
//
// Basic usage:
//
//	d, err := dragonfly.New(dragonfly.DefaultOptions())
//	if err != nil {
//	    // handle error
//	}
//
//	ids, err := dragonfly.NewIdentifierPair("00:11:22:33:44:55", "AA:BB:CC:DD:EE:FF")
//	if err != nil {
//	    // handle error
//	}
//
//	pe, err := d.GeneratePEFixed([]byte("password123"), ids)
//	if err != nil {
//	    // handle error
//	}
//	fmt.Println(pe.Iterations, pe.Value.Text(16))
//
// The sidechannel package models an attacker that only sees iteration counts
// of the reference generator and uses them to prune a password dictionary.
package dragonfly
