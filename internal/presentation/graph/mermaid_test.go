package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/crackle/internal/presentation/graph"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/dsl"
	"github.com/aretw0/crackle/pkg/model"
)

func msg(name string) *model.Def {
	return model.NewBlock(name, model.NewNumber("n", 8))
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *dsl.Builder)
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name: "Initial State Shape",
			build: func(b *dsl.Builder) {
				b.Add("start").Open("open").Output("hello", msg("hello"))
			},
			contains: []string{
				`start(("start <br/> open · output"))`,
			},
		},
		{
			name: "Call State Shape",
			build: func(b *dsl.Builder) {
				b.Add("init").Start("start").Go("rpc")
				b.Add("rpc").Call("c", "Ping")
			},
			contains: []string{
				`rpc[["rpc <br/> call"]]`,
				"init --> rpc",
			},
		},
		{
			name: "Receive State Shape",
			build: func(b *dsl.Builder) {
				b.Add("send").Output("req", msg("req")).Output("req2", msg("req2")).Go("wait-reply")
				b.Add("wait-reply").Input("resp", msg("resp"))
			},
			contains: []string{
				`send(("send <br/> output"))`,
				`wait_reply[/"wait-reply <br/> input"/]`,
				"send --> wait_reply",
			},
		},
		{
			name: "Slurp Edge",
			build: func(b *dsl.Builder) {
				b.Add("hello").Input("recv", msg("echo")).Go("session")
				b.Add("session").
					Slurp(`copy "n"`, "/hello/recv/echo/n", "/session/send/data/n").
					Output("send", msg("data"))
			},
			contains: []string{
				`hello -. "copy 'n'" .-> session`,
			},
		},
		{
			name: "Overlay",
			build: func(b *dsl.Builder) {
				b.Add("a").Open("open").Go("b")
				b.Add("b").Close("close")
			},
			overlay: graph.OverlayFromRecords([]domain.ActionRecord{
				{State: "a", Action: "open"},
				{State: "b", Action: "close", Error: "boom"},
			}),
			contains: []string{
				"class a visited;",
				"class b fault;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New("m")
			tt.build(b)
			sm, err := b.Build()
			if err != nil {
				t.Fatalf("Build() failed: %v", err)
			}
			got := graph.GenerateMermaid(sm, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			if tt.overlay == nil && strings.Contains(got, "classDef") {
				t.Errorf("Unexpected overlay styles without overlay:\n%v", got)
			}
		})
	}
}
