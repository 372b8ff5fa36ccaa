/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing crackle state models.

It allows developers to describe a protocol conversation using a type-safe, fluent builder pattern
instead of assembling domain.StateModel literals by hand.

Example usage:

	b := dsl.New("login")

	b.Add("handshake").
		Connect("connect").
		Output("hello", helloDef).
		Input("welcome", welcomeDef).Timeout(2 * time.Second).
		Go("session")

	b.Add("session").
		Slurp("copy_token", "/handshake/welcome/welcome/token", "//login/token").
		Output("login", loginDef).
		Close("bye")

	sm, err := b.Build()
*/
package dsl
