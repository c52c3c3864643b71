// Package nn provides the differentiable stages a hybrid model chains
// behind its simulator stage: dense layers, activations and plain
// function stages, composed by [Chain].
//
// Trainable parameters are exposed as flat float64 views. Writing into the
// slice returned by [Stage.Params] changes the stage, which is how
// optimizers and [TransferParams] update a chain in place.
package nn
