package domain

import (
	"fmt"
	"strings"
)

const RetCodeOK = "OK"

// State is a named blob attached to a lambda request or response. Exactly one
// of Content and Location is meaningful: inline content travels with the
// message, a location points at an entry in a remote state store.
type State struct {
	Content  []byte `json:"content,omitempty"`
	Location string `json:"location,omitempty"`
}

func (s State) Remote() bool {
	return s.Location != ""
}

// LambdaRequest is the invocation of a named compute unit. Values are
// immutable after construction except for the state injection performed by
// orchestration before forwarding; OneMoreHop returns a forwarded copy.
type LambdaRequest struct {
	Name              string           `json:"name"`
	Input             string           `json:"input,omitempty"`
	DataIn            []byte           `json:"datain,omitempty"`
	Forward           bool             `json:"forward"`
	Hops              uint32           `json:"hops"`
	Dry               bool             `json:"dry,omitempty"`
	Callback          string           `json:"callback,omitempty"`
	Chain             *Chain           `json:"chain,omitempty"`
	Dag               *Dag             `json:"dag,omitempty"`
	NextFunctionIndex int              `json:"nextFunctionIndex,omitempty"`
	States            map[string]State `json:"states,omitempty"`

	// Seq joins the routing decision with the later success/failure
	// notification inside an estimator. Stamped by the processor, never
	// serialized.
	Seq uint64 `json:"-"`
}

func NewLambdaRequest(name, input string, dataIn []byte) LambdaRequest {
	return LambdaRequest{
		Name:   name,
		Input:  input,
		DataIn: dataIn,
	}
}

// OneMoreHop returns a copy of the request with the hop counter incremented
// and the forward flag raised, ready to be sent to the next node.
func (r LambdaRequest) OneMoreHop() LambdaRequest {
	out := r
	out.Forward = true
	out.Hops++
	return out
}

// InputSize is the request size used by the estimators: the larger of the
// text input and the binary input.
func (r LambdaRequest) InputSize() int {
	if len(r.DataIn) > len(r.Input) {
		return len(r.DataIn)
	}
	return len(r.Input)
}

func (r LambdaRequest) String() string {
	origin := "from edge client"
	if r.Forward {
		origin = "from edge node"
	}
	return fmt.Sprintf("name: %s, %s, hops: %d, input: %s, datain size: %d",
		r.Name, origin, r.Hops, r.Input, len(r.DataIn))
}

// LambdaResponse carries the outcome of a lambda invocation. RetCode is "OK"
// on success, otherwise a human-readable error; callers must not parse it
// beyond equality with "OK".
type LambdaResponse struct {
	RetCode        string           `json:"retcode"`
	Output         string           `json:"output,omitempty"`
	Responder      string           `json:"responder,omitempty"`
	ProcessingTime uint32           `json:"ptime"` // milliseconds
	DataOut        []byte           `json:"dataout,omitempty"`
	Load1          uint16           `json:"load1"`
	Load10         uint16           `json:"load10"`
	Load30         uint16           `json:"load30"`
	Hops           uint32           `json:"hops"`
	Asynchronous   bool             `json:"asynchronous,omitempty"`
	States         map[string]State `json:"states,omitempty"`
}

func NewLambdaResponse(retCode, output string) LambdaResponse {
	return LambdaResponse{RetCode: retCode, Output: output}
}

// NewLambdaResponseWithLoads converts fractional utilisations in [0,1] into
// the load fields, each clamped to [0,99].
func NewLambdaResponseWithLoads(retCode, output string, loads [3]float64) LambdaResponse {
	return LambdaResponse{
		RetCode: retCode,
		Output:  output,
		Load1:   ClampLoad(loads[0]),
		Load10:  ClampLoad(loads[1]),
		Load30:  ClampLoad(loads[2]),
	}
}

func (r LambdaResponse) OK() bool {
	return r.RetCode == RetCodeOK
}

func (r LambdaResponse) ProcessingTimeSeconds() float64 {
	return float64(r.ProcessingTime) * 1e-3
}

func (r LambdaResponse) String() string {
	return fmt.Sprintf("retcode: %s, from: %s, ptime: %d ms, hops: %d, load: %d/%d/%d, output: %s, dataout size: %d",
		r.RetCode, r.Responder, r.ProcessingTime, r.Hops,
		r.Load1, r.Load10, r.Load30, r.Output, len(r.DataOut))
}

// ClampLoad converts a fractional utilisation to a percentage in [0,99].
func ClampLoad(util float64) uint16 {
	load := int(0.5 + util*100)
	if load < 0 {
		load = 0
	}
	if load > 99 {
		load = 99
	}
	return uint16(load)
}

// ParseLambdaName splits a lambda name into namespace and function. A bare
// name selects the default namespace, "/ns/foo" selects namespace "ns";
// anything else is rejected.
func ParseLambdaName(name, defaultNamespace string) (namespace, function string, err error) {
	if name == "" {
		return "", "", fmt.Errorf("empty lambda name")
	}
	if !strings.HasPrefix(name, "/") {
		if strings.Contains(name, "/") {
			return "", "", fmt.Errorf("invalid lambda name: %s", name)
		}
		return defaultNamespace, name, nil
	}
	parts := strings.Split(name[1:], "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid lambda name: %s", name)
	}
	return parts[0], parts[1], nil
}
