package runtime_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/crackle/internal/runtime"
	"github.com/aretw0/crackle/pkg/adapters/memory"
	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteModel(name string, v uint64) *model.Def {
	return model.NewBlock(name, model.NewNumber("v", 8).Value(v))
}

func output(name string, def *model.Def) domain.Action {
	return domain.Action{Name: name, Type: domain.ActionOutput, Model: def}
}

func single(actions ...domain.Action) *domain.StateModel {
	return &domain.StateModel{
		Name:    "proto",
		Initial: "s",
		States:  []domain.State{{Name: "s", Actions: actions}},
	}
}

type harness struct {
	engine *runtime.Engine
	models runtime.Models
}

func newHarness(t *testing.T, ep ports.Endpoint, sm *domain.StateModel, opts ...runtime.EngineOption) *harness {
	t.Helper()
	require.NoError(t, runtime.Validate(sm))
	models, err := runtime.CompileModels(sm)
	require.NoError(t, err)
	return &harness{engine: runtime.NewEngine(ep, opts...), models: models}
}

func (h *harness) run(ctx context.Context, sm *domain.StateModel, n int) (runtime.Models, *runtime.Report, error) {
	clone := h.models.Clone()
	report, err := h.engine.Run(ctx, sm, runtime.Iteration{Number: n, Recording: n == 0, Models: clone})
	return clone, report, err
}

func TestEngine_ChangeStateUnwindsRemainingActions(t *testing.T) {
	ep := memory.NewEndpoint()
	sm := &domain.StateModel{
		Name:    "proto",
		Initial: "login",
		States: []domain.State{
			{Name: "login", Actions: []domain.Action{
				output("hello", byteModel("m", 1)),
				{Name: "jump", Type: domain.ActionChangeState, Target: "stream"},
				output("r1", byteModel("m", 2)),
				output("r2", byteModel("m", 3)),
				output("r3", byteModel("m", 4)),
			}},
			{Name: "stream", Actions: []domain.Action{
				output("first", byteModel("m", 9)),
				output("second", byteModel("m", 10)),
			}},
		},
	}
	h := newHarness(t, ep, sm)

	_, report, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"login.hello", "login.jump", "stream.first", "stream.second"}, report.Executed())
	assert.Equal(t, [][]byte{{1}, {9}, {10}}, ep.Outputs())
	assert.Empty(t, report.Records[1].Error, "change of state is not a failure")
}

func TestEngine_ChangeStateHooks(t *testing.T) {
	var entered []string
	var started []string
	hooks := domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			entered = append(entered, e.From+">"+e.State)
		},
		OnActionStart: func(ctx context.Context, e *domain.ActionEvent) {
			started = append(started, e.Action)
		},
	}
	sm := &domain.StateModel{
		Initial: "a",
		States: []domain.State{
			{Name: "a", Actions: []domain.Action{{Name: "go", Type: domain.ActionChangeState, Target: "b"}}},
			{Name: "b", Actions: []domain.Action{{Name: "open", Type: domain.ActionOpen}}},
		},
	}
	h := newHarness(t, memory.NewEndpoint(), sm, runtime.WithLifecycleHooks(hooks))

	_, _, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{">a", "a>b"}, entered)
	assert.Equal(t, []string{"go", "open"}, started)
}

func TestEngine_InputRecordsConsumedBytes(t *testing.T) {
	ep := memory.NewEndpoint(memory.WithInputs([]byte{1, 2, 3, 4, 5}))
	sm := single(domain.Action{Name: "recv", Type: domain.ActionInput, Model: model.NewBlock("m", model.NewNumber("n", 32))})
	h := newHarness(t, ep, sm)

	models, report, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, report.Records[0].Received)
	assert.Equal(t, 0, ep.OpenStreams())

	tree := models["s.recv.m"]
	id, _ := tree.Find("m.n")
	v, err := tree.TypedValue(id)
	require.NoError(t, err)
	assert.Equal(t, model.Uint(0x01020304), v)
}

// bufferedEndpoint serves one shared byte buffer across Input calls and
// keeps whatever a stream hands back.
type bufferedEndpoint struct {
	*memory.Endpoint
	pending []byte
}

func (e *bufferedEndpoint) Input(context.Context) (io.ReadCloser, error) {
	s := &bufferedStream{ep: e, buf: e.pending}
	e.pending = nil
	return s, nil
}

type bufferedStream struct {
	ep  *bufferedEndpoint
	buf []byte
}

func (s *bufferedStream) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *bufferedStream) Unread(p []byte) {
	s.buf = append(append([]byte{}, p...), s.buf...)
}

func (s *bufferedStream) Close() error {
	s.ep.pending = s.buf
	return nil
}

func TestEngine_InputHandsBackUnconsumedBytes(t *testing.T) {
	ep := &bufferedEndpoint{Endpoint: memory.NewEndpoint(), pending: []byte{1, 2}}
	sm := single(
		domain.Action{Name: "first", Type: domain.ActionInput, Model: model.NewBlock("a", model.NewNumber("n", 8))},
		domain.Action{Name: "second", Type: domain.ActionInput, Model: model.NewBlock("b", model.NewNumber("n", 8))},
	)
	h := newHarness(t, ep, sm)

	_, report, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)
	assert.Equal(t, []byte{1}, report.Records[0].Received)
	assert.Equal(t, []byte{2}, report.Records[1].Received)
	assert.Empty(t, ep.pending)
}

func TestEngine_InputFailures(t *testing.T) {
	def := func() *domain.StateModel {
		return single(domain.Action{
			Name:    "recv",
			Type:    domain.ActionInput,
			Model:   model.NewBlock("m", model.NewNumber("n", 32)),
			Timeout: 30 * time.Millisecond,
		})
	}
	tests := []struct {
		name     string
		ep       *memory.Endpoint
		category domain.Category
		path     string
	}{
		{"no data before deadline", memory.NewEndpoint(), domain.CategoryTimeout, ""},
		{"zero bytes", memory.NewEndpoint(memory.WithInputs([]byte{})), domain.CategoryTimeout, ""},
		{"one byte short", memory.NewEndpoint(memory.WithInputs([]byte{1, 2, 3})), domain.CategoryCrack, "m.n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := def()
			h := newHarness(t, tt.ep, sm)

			_, report, err := h.run(context.Background(), sm, 0)
			var re *domain.RecoverableError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.category, re.Category)
			assert.Equal(t, tt.category, domain.Classify(err))
			assert.False(t, domain.Classify(err).Fatal())
			assert.Equal(t, "s", re.State)
			assert.Equal(t, "recv", re.Action)
			assert.Equal(t, tt.path, re.Path)
			assert.Equal(t, 0, tt.ep.OpenStreams(), "input stream must be closed")
			assert.Len(t, report.Records, 1)
		})
	}
}

func TestEngine_EndpointFailureIsFatal(t *testing.T) {
	ep := memory.NewEndpoint(memory.WithFailure("connect", errors.New("connection refused")))
	sm := single(
		domain.Action{Name: "connect", Type: domain.ActionConnect},
		output("send", byteModel("m", 1)),
	)
	h := newHarness(t, ep, sm)

	_, report, err := h.run(context.Background(), sm, 0)
	var ee *domain.EndpointError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "connect", ee.Op)
	assert.True(t, domain.Classify(err).Fatal())
	assert.Len(t, report.Records, 1)
	assert.Empty(t, ep.Outputs())
}

func TestEngine_ConversionFailureIsRecoverable(t *testing.T) {
	sm := single(output("send", model.NewBlock("m",
		model.NewNumber("len", 8).SizeOf("data"),
		model.NewBlob("data").Value(make([]byte, 300)),
	)))
	h := newHarness(t, memory.NewEndpoint(), sm)

	_, _, err := h.run(context.Background(), sm, 0)
	var re *domain.RecoverableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.CategoryConversion, re.Category)
	assert.Equal(t, "m.len", re.Path)
}

func TestEngine_CancelBetweenActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hooks := domain.LifecycleHooks{
		OnActionEnd: func(context.Context, *domain.ActionEvent) { cancel() },
	}
	ep := memory.NewEndpoint()
	sm := single(output("one", byteModel("m", 1)), output("two", byteModel("m", 2)))
	h := newHarness(t, ep, sm, runtime.WithLifecycleHooks(hooks))

	_, report, err := h.run(ctx, sm, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.CategoryCanceled, domain.Classify(err))
	assert.Len(t, report.Records, 1)
	assert.Equal(t, [][]byte{{1}}, ep.Outputs())
}

func TestEngine_Call(t *testing.T) {
	var got []ports.CallArg
	ep := memory.NewEndpoint(memory.WithCallHandler(func(ctx context.Context, method string, args []ports.CallArg) (*ports.CallResult, error) {
		got = args
		return &ports.CallResult{
			Out:      map[string][]byte{"buf": {3, 4}, "status": {0x7F}},
			Value:    []byte{0x2A},
			HasValue: true,
		}, nil
	}))
	sm := single(domain.Action{
		Name:   "rpc",
		Type:   domain.ActionCall,
		Method: "Transfer",
		Params: []domain.Param{
			{Name: "req", Direction: domain.ParamIn, Model: byteModel("req", 5)},
			{Name: "buf", Direction: domain.ParamInOut, Model: model.NewBlock("buf",
				model.NewNumber("a", 8).Value(1),
				model.NewNumber("b", 8).Value(2),
			)},
			{Name: "status", Direction: domain.ParamOut, Model: model.NewBlock("status", model.NewNumber("code", 8))},
		},
		Result: model.NewBlock("ret", model.NewNumber("rc", 8)),
	})
	h := newHarness(t, ep, sm)

	models, report, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []byte{5}, got[0].Data)
	assert.Equal(t, []byte{1, 2}, got[1].Data)
	assert.Nil(t, got[2].Data)
	assert.Equal(t, []byte{5, 1, 2}, report.Records[0].Sent)

	lookup := func(key, path string) model.Value {
		tree := models[key]
		id, ok := tree.Find(path)
		require.True(t, ok, path)
		v, err := tree.TypedValue(id)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, model.Uint(3), lookup("s.rpc.buf", "buf.a"))
	assert.Equal(t, model.Uint(4), lookup("s.rpc.buf", "buf.b"))
	assert.Equal(t, model.Uint(0x7F), lookup("s.rpc.status", "status.code"))
	assert.Equal(t, model.Uint(0x2A), lookup("s.rpc.ret", "ret.rc"))
}

func TestEngine_CallWithoutReturnValue(t *testing.T) {
	ep := memory.NewEndpoint(memory.WithCallHandler(func(context.Context, string, []ports.CallArg) (*ports.CallResult, error) {
		return &ports.CallResult{}, nil
	}))
	sm := single(domain.Action{Name: "rpc", Type: domain.ActionCall, Method: "M", Result: byteModel("ret", 0)})
	h := newHarness(t, ep, sm)

	_, _, err := h.run(context.Background(), sm, 0)
	assert.Equal(t, domain.CategoryCrack, domain.Classify(err))
}

func TestEngine_UnsupportedOperationIsConfigError(t *testing.T) {
	ep := memory.NewEndpoint()
	sm := single(domain.Action{Name: "rpc", Type: domain.ActionCall, Method: "M"})
	h := newHarness(t, ep, sm)

	_, report, err := h.run(context.Background(), sm, 0)
	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "s.rpc", ce.Path)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	assert.Equal(t, domain.CategoryConfig, domain.Classify(err))
	assert.True(t, domain.Classify(err).Fatal())
	assert.Len(t, report.Records, 1)
}

func TestEngine_Properties(t *testing.T) {
	ep := memory.NewEndpoint(memory.WithProperty("version", model.String("v2")))
	sm := single(
		domain.Action{Name: "get", Type: domain.ActionGetProperty, Property: "version", Element: "ver",
			Model: model.NewBlock("info", model.NewString("ver"))},
		domain.Action{Name: "set", Type: domain.ActionSetProperty, Property: "mtu", Element: "mtu",
			Model: model.NewBlock("cfg", model.NewNumber("mtu", 16).Value(1400))},
	)
	h := newHarness(t, ep, sm)

	models, _, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)

	info := models["s.get.info"]
	id, _ := info.Find("info.ver")
	assert.Equal(t, model.String("v2"), info.Value(id))

	mtu, ok := ep.Property("mtu")
	require.True(t, ok)
	assert.Equal(t, model.Int(1400), mtu)
}

func TestEngine_SlurpAcrossIterations(t *testing.T) {
	token := func(name string, v uint64) *model.Def {
		return model.NewBlock(name, model.NewNumber("token", 16).Value(v))
	}
	ep := memory.NewEndpoint()
	sm := single(
		output("a1", token("m1", 0x1234)),
		domain.Action{Name: "copy", Type: domain.ActionSlurp, Slurps: []domain.SlurpBinding{
			{Source: "/s/a1/m1/token", Sink: "//m2/token"},
		}},
		output("a2", token("m2", 0)),
	)
	cache := memory.NewSlurpCache()
	h := newHarness(t, ep, sm, runtime.WithSlurpCache(cache))

	_, _, err := h.run(context.Background(), sm, 0)
	require.NoError(t, err)
	_, _, err = h.run(context.Background(), sm, 1)
	require.NoError(t, err)

	assert.Equal(t, [][]byte{{0x12, 0x34}, {0x12, 0x34}, {0x12, 0x34}, {0x12, 0x34}}, ep.Outputs())
	assert.Equal(t, []string{"s.copy[0]"}, cache.Keys())
}

func TestEngine_SlurpSourceOutOfScopeIsFatal(t *testing.T) {
	sm := single(
		domain.Action{Name: "copy", Type: domain.ActionSlurp, Slurps: []domain.SlurpBinding{
			{Source: "//later/v", Sink: "//m/v"},
		}},
		output("later", byteModel("later", 1)),
	)
	h := newHarness(t, memory.NewEndpoint(), sm)

	_, _, err := h.run(context.Background(), sm, 0)
	assert.ErrorIs(t, err, domain.ErrSlurpSource)
	assert.Equal(t, domain.CategoryConfig, domain.Classify(err))
}

func TestOutcome(t *testing.T) {
	assert.True(t, runtime.Continue().IsContinue())
	assert.NoError(t, runtime.Continue().Err())

	target, ok := runtime.ChangeTo("T").Target()
	assert.True(t, ok)
	assert.Equal(t, "T", target)
	assert.NoError(t, runtime.ChangeTo("T").Err(), "change of state carries no error")

	boom := errors.New("boom")
	_, ok = runtime.Fail(boom).Target()
	assert.False(t, ok)
	assert.ErrorIs(t, runtime.Fail(boom).Err(), boom)
}
