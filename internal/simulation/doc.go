// Package simulation generates synthetic peer-to-peer networks and
// interactions and runs EigenTrust over them.
//
// A Simulation owns its peers, the interactions among them and the result
// of the latest run. All randomness comes from an explicit Random handle,
// so a seeded simulation is reproducible end to end: the same seed, peer
// count and interaction count yield the same network, the same
// interaction sequence and the same trust scores.
//
// Usage:
//
//	sim := simulation.New(simulation.WithSeed(42))
//	if err := sim.GeneratePeers(simulation.PresetAdversarial, 20); err != nil {
//	    return err
//	}
//	if _, err := sim.SimulateInteractions(500, simulation.SimulateOptions{}); err != nil {
//	    return err
//	}
//	scores, err := sim.RunAlgorithm(simulation.DefaultRunConfig())
//
// The exported Assert helpers check the algorithm's structural properties
// and are shared by the tests of this and other packages.
package simulation
