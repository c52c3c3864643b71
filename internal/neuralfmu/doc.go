// Package neuralfmu composes a simulator instance with trainable stages
// into one hybrid model.
//
// [ME] integrates the chain [adapter stage, layers...] as the right-hand
// side of an ODE; the chain maps states to state derivatives. [CS] drives
// the chain once per macro step; the chain maps inputs to outputs.
//
// Both implement [Model] and own their instance exclusively for their
// lifetime. Every Simulate call resets the instance and runs experiment
// setup and initialization again, so repeated runs are independent.
package neuralfmu
