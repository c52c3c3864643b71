// Package adapter is the single boundary between the hybrid pipeline and
// the simulator. [DoStepME] queries state derivatives without advancing
// the instance; [DoStepCS] advances it by exactly one macro step.
//
// [MEStage] and [CSStage] wrap the two calls as frozen pipeline stages so
// they can head an [nn.Chain].
package adapter
