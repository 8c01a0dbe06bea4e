package pipeline_test

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/pipeline"
	"github.com/matzehuels/trussview/pkg/topology"
)

func ExamplePlan() {
	t := topology.New()
	for i, x := range []float64{0, 1000, 2000} {
		_ = t.AddNode(topology.Node{ID: topology.NodeID(i + 1), Pos: r3.Vec{X: x}})
	}

	records := []load.Record{
		{Source: "MF-01", Node: 1, Force: r3.Vec{Z: -10}, Kind: load.KindVector, Group: "MF-01"},
		{Source: "MF-02", Node: 3, Force: r3.Vec{X: 4}, Kind: load.KindVector, Group: "MF-02"},
		{Source: "W1", Node: 2, Force: r3.Vec{X: 1}, Kind: load.KindDirectional, Group: "Lift 1"},
		{Source: "W2", Node: 9, Force: r3.Vec{Y: 1}, Kind: load.KindDirectional, Group: "Lift 2"},
	}

	for _, v := range pipeline.Plan(t, records) {
		fmt.Println(v.Name, v.Kind, v.Competitors)
	}
	// Output:
	// View_01_Full_Model full []
	// View_MF_MF-01 detail [3]
	// View_MF_MF-02 detail [1]
	// View_Winch_Lift_1 group []
}
