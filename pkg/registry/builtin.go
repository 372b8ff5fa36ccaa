package registry

import (
	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/dsl"
	"github.com/aretw0/crackle/pkg/fixup"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
)

// TLVEcho is a demo target: a type-length-value frame with a CRC-32
// trailer sent to a loopback endpoint, whose echo is cracked and whose
// session token is slurped into a follow-up frame.
var TLVEcho = Target{
	Name:        "tlv-echo",
	Description: "CRC-protected TLV frames against an in-memory loopback",
	StateModel:  tlvEcho,
	Endpoint: func() (ports.Endpoint, error) {
		return memory.NewEndpoint(memory.WithEcho()), nil
	},
}

// Frame returns the TLV frame definition named name.
func Frame(name string, typ uint64, payload string) *model.Def {
	return model.NewBlock(name,
		model.NewNumber("type", 8).Value(typ),
		model.NewNumber("length", 16).SizeOf("value"),
		model.NewBlock("value",
			model.NewNumber("token", 32).Value(uint64(0xC0FFEE)),
			model.NewString("payload").Value(payload),
		),
		model.NewNumber("crc", 32).Fix(fixup.CRC32(), "type", "length", "value"),
	)
}

func reply(name string) *model.Def {
	return model.NewBlock(name,
		model.NewNumber("type", 8),
		model.NewNumber("length", 16).SizeOf("value"),
		model.NewBlock("value",
			model.NewNumber("token", 32),
			model.NewString("payload"),
		),
		model.NewNumber("crc", 32),
	)
}

func tlvEcho() (*domain.StateModel, error) {
	b := dsl.New("tlv-echo")
	b.Add("hello").
		Open("open").
		Output("send", Frame("hello", 1, "crackle")).
		Input("recv", reply("echo")).
		Go("session")
	b.Add("session").
		Slurp("token", "/hello/recv/echo/value/token", "/session/send/data/value/token").
		Output("send", Frame("data", 2, "payload")).
		Input("recv", reply("echo")).
		Close("close")
	return b.Build()
}

// Default returns a registry holding the built-in targets.
func Default() *Registry {
	r := NewRegistry()
	r.Register(TLVEcho)
	return r
}
