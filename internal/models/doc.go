// Package models provides the built-in FMU models used for reference data
// and as the physical part of hybrid models.
//
// Each model implements [fmu.Model]:
//
//   - [NewSpringPendulum1D]: frictionless mass on a spring
//   - [NewSpringFrictionPendulum1D]: the same with viscous and Coulomb friction
//   - [NewSpringPendulumExtForce1D]: external force input, position and
//     acceleration outputs
//
// All variants share one variable layout, so value references such as
// [RefPosition] are valid for every model.
package models
