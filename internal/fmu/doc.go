// Package fmu is the simulator backend consumed by the hybrid simulation
// layer: an in-process Functional Mock-up Unit with the model exchange and
// co-simulation calling conventions.
//
// A [Model] publishes a [ModelDescription] and evaluates its equations over
// a flat store of real variables indexed by [ValueReference]. An [Instance]
// wraps a Model with the usual lifecycle:
//
//	inst, _ := fmu.Instantiate(models.NewSpringPendulum1D())
//	_ = inst.SetupExperiment(0, 5)
//	_ = inst.EnterInitializationMode()
//	_ = inst.ExitInitializationMode()
//	dx, _ := inst.GetDerivatives()      // model exchange
//	_ = inst.DoStep(0.01)                // co-simulation
//
// # Thread Safety
//
// Every Instance method is serialized by a mutex. Ownership by a hybrid
// model is exclusive: see [Instance.Claim].
package fmu
