// Package train fits the trainable stages of a hybrid model to reference
// data.
//
// An [Orchestrator] loops through the phases
//
//	Idle -> Evaluating -> GradientComputed -> Updated -> (loop | Converged | Aborted)
//
// evaluating a [LossFunc], estimating its gradient with respect to every
// trainable parameter and applying one optimizer step per iteration.
// Simulator stages are frozen: they contribute no parameters.
//
// Cancellation is observed only at the top of each iteration. A
// simulation or loss failure aborts the run and is returned to the caller
// without retry. Callback failures are logged and never abort.
package train
