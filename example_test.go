package crackle_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/crackle"
	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/dsl"
	"github.com/aretw0/crackle/pkg/model"
)

// ExampleEngine_Run drives a length-prefixed echo conversation against an
// in-memory loopback endpoint.
func ExampleEngine_Run() {
	b := dsl.New("echo")
	b.Add("session").
		Open("open").
		Output("hello", model.NewBlock("hello",
			model.NewNumber("len", 8).SizeOf("name"),
			model.NewString("name").Value("crackle"),
		)).
		Input("reply", model.NewBlock("reply",
			model.NewNumber("len", 8).SizeOf("name"),
			model.NewString("name"),
		)).
		Close("close")
	sm := b.MustBuild()

	ep := memory.NewEndpoint(memory.WithEcho())
	eng, err := crackle.New(sm, ep)
	if err != nil {
		log.Fatal(err)
	}

	summary, err := eng.Run(context.Background(), 2)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("iterations:", summary.Iterations)
	fmt.Println("faults:", len(summary.Faults))
	fmt.Printf("sent: % x\n", ep.Outputs()[0])
	// Output:
	// iterations: 2
	// faults: 0
	// sent: 07 63 72 61 63 6b 6c 65
}
