// Package dynamo provides the core value types shared by the hybrid
// simulation layer and the training loop.
//
// The package defines:
//
//   - [State]: vector representing a continuous system state
//   - [StepResult]: primary vector plus optional probed values of one step
//   - [Trajectory]: time-stamped samples produced by a simulation or recorded
//     from a real system
//   - [ConfigurationError], [SimulationError], [CallbackError]: the error kinds
//     every other package reports through
//
// # Error kinds
//
// Configuration errors are raised before any simulation work starts and are
// always fatal. Simulation errors come from the simulator mid-run and abort
// the current operation. Callback errors are logged by the training loop and
// never interrupt it.
//
//	if dynamo.IsConfiguration(err) {
//	    // fix the setup, retrying is pointless
//	}
package dynamo
