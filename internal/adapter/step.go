package adapter

import (
	"math"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/fmu"
)

func checkSet(op string, setRefs []fmu.ValueReference, setValues []float64) error {
	if len(setRefs) != len(setValues) {
		return dynamo.Configf(op, dynamo.ErrValueReference, "%d set references for %d values", len(setRefs), len(setValues))
	}
	return nil
}

func probe(inst *fmu.Instance, getRefs []fmu.ValueReference) ([]float64, error) {
	if len(getRefs) == 0 {
		return nil, nil
	}
	return inst.GetReal(getRefs)
}

// DoStepME sets the continuous states to x and returns the state
// derivative plus the values of getRefs. A NaN t keeps the instance time.
// The instance clock is never advanced.
func DoStepME(inst *fmu.Instance, x dynamo.State, t float64, setRefs []fmu.ValueReference, setValues []float64, getRefs []fmu.ValueReference) (dynamo.StepResult, error) {
	if err := checkSet("DoStepME", setRefs, setValues); err != nil {
		return dynamo.StepResult{}, err
	}
	if n := inst.Description().NumStates(); len(x) != n {
		return dynamo.StepResult{}, dynamo.Configf("DoStepME", dynamo.ErrDimensionMismatch, "state has %d components, model has %d", len(x), n)
	}

	if !math.IsNaN(t) {
		if err := inst.SetTime(t); err != nil {
			return dynamo.StepResult{}, err
		}
	}
	if len(setRefs) > 0 {
		if err := inst.SetReal(setRefs, setValues); err != nil {
			return dynamo.StepResult{}, err
		}
	}
	if err := inst.SetContinuousStates(x); err != nil {
		return dynamo.StepResult{}, err
	}
	dx, err := inst.GetDerivatives()
	if err != nil {
		return dynamo.StepResult{}, err
	}
	probed, err := probe(inst, getRefs)
	if err != nil {
		return dynamo.StepResult{}, err
	}
	return dynamo.StepResult{Values: dx, Probed: probed}, nil
}

// DoStepCS applies setValues, advances the instance by dt and returns all
// model outputs plus the values of getRefs.
func DoStepCS(inst *fmu.Instance, dt float64, setRefs []fmu.ValueReference, setValues []float64, getRefs []fmu.ValueReference) (dynamo.StepResult, error) {
	if err := checkSet("DoStepCS", setRefs, setValues); err != nil {
		return dynamo.StepResult{}, err
	}
	if len(setRefs) > 0 {
		if err := inst.SetReal(setRefs, setValues); err != nil {
			return dynamo.StepResult{}, err
		}
	}
	if err := inst.DoStep(dt); err != nil {
		return dynamo.StepResult{}, err
	}
	out, err := inst.GetReal(inst.Description().Outputs)
	if err != nil {
		return dynamo.StepResult{}, err
	}
	probed, err := probe(inst, getRefs)
	if err != nil {
		return dynamo.StepResult{}, err
	}
	return dynamo.StepResult{Values: out, Probed: probed}, nil
}

// InputDoStepCSOutput sets every model input from u, takes one macro step
// of dt and returns every model output.
func InputDoStepCSOutput(inst *fmu.Instance, dt float64, u []float64) (dynamo.State, error) {
	res, err := DoStepCS(inst, dt, inst.Description().Inputs, u, nil)
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}
