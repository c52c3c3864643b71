package report

import (
	"github.com/san-kum/neuralfmu/internal/train"
)

// LossCallback plots the loss observed at every callback so far.
type LossCallback struct {
	sink  Sink
	title string
	its   []float64
	loss  []float64
}

func NewLossCallback(s Sink, title string) *LossCallback {
	if title == "" {
		title = "loss"
	}
	return &LossCallback{sink: s, title: title}
}

func (c *LossCallback) OnIteration(s train.State) error {
	c.its = append(c.its, float64(s.Iteration))
	c.loss = append(c.loss, s.Loss)
	return c.sink.Plot(c.title, Series{Name: "loss", X: c.its, Y: c.loss})
}
