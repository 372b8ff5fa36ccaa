/*
Package crackle is a model-based protocol fuzzing engine.

A target protocol is described twice: its messages as data models (element
trees with relations, fixups and transformers, see pkg/model) and its
conversation as a state model (states holding ordered actions, see
pkg/domain). Each fuzzing iteration clones the data models, lets a Mutator
alter them, and walks the state model against an Endpoint: outgoing models
are serialized, incoming bytes are cracked back into models, and slurp
actions copy values between models so a response can feed the next request.

# Concept

The engine keeps the protocol grammar intact while the mutator breaks it.
Size, count and offset fields follow the content they describe and
checksums are recomputed on every serialization, unless a mutation
overrides them on purpose. Failures are classified: a crack failure or a
timeout ends the iteration and becomes a Fault; configuration and endpoint
failures end the run.

# Key Entities

  - Engine: validated state model plus compiled data models and endpoint.
  - Summary: the outcome of a run, with every Fault it produced.
  - runtime.Report: the action trace of a single iteration.

# Key Interfaces

  - ports.Endpoint: the transport to the target.
  - ports.Mutator: alters the models of an iteration.
  - ports.FaultReporter: receives faults.
  - ports.SlurpCache: keeps slurp recordings between iterations.
  - ports.DistributedLocker: serializes runs against one target.

# Usage

	b := dsl.New("echo")
	b.Add("session").
		Output("hello", helloModel).
		Input("reply", replyModel)
	sm := b.MustBuild()

	eng, err := crackle.New(sm, memory.NewEndpoint(memory.WithEcho()),
		crackle.WithMutator(myMutator),
		crackle.WithFaultReporter(memory.NewFaultLog()),
	)
	if err != nil {
		log.Fatal(err)
	}

	summary, err := eng.Run(ctx, 1000)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(len(summary.Faults), "faults")
*/
package crackle
