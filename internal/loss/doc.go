// Package loss compares trajectories. [MSE] works on equally sampled
// vectors; [MSEInterpolate] first interpolates both trajectories onto
// common comparison timestamps, so a solver-chosen grid can be compared
// with uniformly sampled reference data.
package loss
