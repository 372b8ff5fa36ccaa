package model_test

import (
	"errors"
	"testing"

	"github.com/aretw0/crackle/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sum8 struct{}

func (sum8) Name() string { return "sum8" }

func (sum8) Fix(r model.Resolver, refs []model.ID) (model.Value, error) {
	var s uint64
	for _, ref := range refs {
		b, err := r.SerializedValue(ref)
		if err != nil {
			return model.Nil, err
		}
		for _, c := range b.Bytes() {
			s += uint64(c)
		}
	}
	return model.Uint(s & 0xff), nil
}

type invert struct{}

func (invert) Name() string { return "invert" }

func (invert) Encode(p []byte) ([]byte, error) {
	out := make([]byte, len(p))
	for i, c := range p {
		out[i] = ^c
	}
	return out, nil
}

func (i invert) Decode(p []byte) ([]byte, error) { return i.Encode(p) }

func find(t *testing.T, tree *model.Tree, path string) model.ID {
	t.Helper()
	id, ok := tree.Find(path)
	require.True(t, ok, "element %s not found", path)
	return id
}

func lengthPrefixed() *model.Def {
	return model.NewBlock("msg",
		model.NewNumber("len", 8).SizeOf("data"),
		model.NewString("data").Value("abc"),
	)
}

func TestSerialize_SizeRelation(t *testing.T) {
	tree, err := model.Compile(lengthPrefixed())
	require.NoError(t, err)

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 'a', 'b', 'c'}, out)

	tree.SetValue(find(t, tree, "msg.data"), model.String("hello"))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 'h', 'e', 'l', 'l', 'o'}, out)
}

func TestSerialize_SizeIncludesItself(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("pkt",
		model.NewNumber("len", 16).SizeOf("pkt"),
		model.NewBlob("body").Value([]byte("xyz")),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x05, 'x', 'y', 'z'}, out)
}

func TestSerialize_SizeInBitsWithExpression(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("msg",
		model.NewNumber("words", 8).SizeOf("data", model.InBits(), model.WithExpressions(model.Mul(16), model.Div(16))),
		model.NewBlob("data").Value([]byte{1, 2, 3, 4}),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 1, 2, 3, 4}, out)

	// Three bytes are not a whole number of 16 bit words.
	tree.SetValue(find(t, tree, "msg.data"), model.Bytes([]byte{1, 2, 3}))
	_, err = tree.Serialize()
	var convErr *model.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "msg.words", convErr.Path)
}

func TestSerialize_CountRelation(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("msg",
		model.NewNumber("count", 8).CountOf("items"),
		model.NewArray("items", model.NewNumber("item", 8).Value(0xAA)).Instances(2),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0xAA, 0xAA}, out)

	items := find(t, tree, "msg.items")
	require.NoError(t, tree.Resize(items, 3))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0xAA, 0xAA, 0xAA}, out)

	tree.SetValue(find(t, tree, "msg.items.item_2"), model.Uint(0xBB))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0xAA, 0xAA, 0xBB}, out)

	require.NoError(t, tree.Resize(items, 0))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, out)
}

func TestSerialize_OffsetRelation(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("off", 8).OffsetOf("data"),
		model.NewBlob("pad").Value([]byte{1, 2}),
		model.NewNumber("data", 8).Value(7),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 1, 2, 7}, out)

	tree.SetValue(find(t, tree, "m.pad"), model.Bytes([]byte{1, 2, 3}))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 1, 2, 3, 7}, out)
}

func TestSerialize_OffsetRelativeToAnchor(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewBlob("hdr").Value([]byte{0xFF, 0xFF}),
		model.NewBlock("body",
			model.NewNumber("off", 8).OffsetOf("data", model.RelativeTo("body")),
			model.NewBlob("gap").Value([]byte{0}),
			model.NewNumber("data", 8).Value(9),
		),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 2, 0, 9}, out)
}

func TestSerialize_NestedArrays(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("grid",
		model.NewArray("rows", model.NewBlock("row",
			model.NewNumber("n", 8).CountOf("cells"),
			model.NewArray("cells", model.NewNumber("cell", 8).Value(1)).Instances(2),
		)).Instances(2),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 1, 1, 2, 1, 1}, out)

	require.NoError(t, tree.Resize(find(t, tree, "grid.rows.row_1.cells"), 3))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 1, 1, 3, 1, 1, 1}, out)
}

func TestSerialize_Choice(t *testing.T) {
	tree := model.MustCompile(model.NewChoice("c",
		model.NewNumber("a", 8).Value(1),
		model.NewNumber("b", 16).Value(2),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, out)

	require.NoError(t, tree.Select(tree.Root(), find(t, tree, "c.b")))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2}, out)
}

func TestSerialize_NumberEncoding(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("le", 16).Signed().Little().Value(-2),
		model.NewNumber("be", 32).Value(0x01020304),
		model.NewNumber("nib", 4).Value(0xA),
		model.NewNumber("low", 4).Value(0x5),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFE, 0xFF, 1, 2, 3, 4, 0xA5}, out)
}

func TestSerialize_OutOfRange(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m", model.NewNumber("n", 8).Value(300)))

	_, err := tree.Serialize()
	var convErr *model.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "m.n", convErr.Path)
	assert.ErrorIs(t, err, model.ErrOutOfRange)
}

func TestSerialize_FixedLength(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewString("s").Fixed(4).Padding(' ').Value("ab"),
		model.NewString("z").Terminated().Value("hi"),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte("ab  hi\x00"), out)

	tree.SetValue(find(t, tree, "m.s"), model.String("abcdef"))
	_, err = tree.Serialize()
	assert.ErrorIs(t, err, model.ErrOutOfRange)
}

func TestSerialize_Transformer(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("len", 8).SizeOf("data"),
		model.NewString("data").Value("ab").Transform(invert{}),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, ^byte('a'), ^byte('b')}, out)
}

func TestFixup_Deterministic(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("sum", 8).Fix(sum8{}, "body"),
		model.NewBlob("body").Value([]byte{1, 2}),
	))

	first, err := tree.Serialize()
	require.NoError(t, err)
	tree.Invalidate(tree.Root())
	second, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []byte{3, 1, 2}, first)

	tree.SetValue(find(t, tree, "m.body"), model.Bytes([]byte{1, 3}))
	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 1, 3}, out)
}

func TestOverride_SurvivesPropagation(t *testing.T) {
	tree := model.MustCompile(lengthPrefixed())
	length := find(t, tree, "msg.len")
	data := find(t, tree, "msg.data")

	tree.SetTypedValue(length, model.Uint(9))
	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 'a', 'b', 'c'}, out)

	tree.SetValue(data, model.String("abcd"))
	assert.True(t, tree.IsOverridden(length))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 'a', 'b', 'c', 'd'}, out)

	tree.Invalidate(length)
	assert.False(t, tree.IsOverridden(length))
	out, err = tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 'a', 'b', 'c', 'd'}, out)
}

func TestInvalidate_Idempotent(t *testing.T) {
	tree := model.MustCompile(lengthPrefixed())
	want, err := tree.Serialize()
	require.NoError(t, err)

	data := find(t, tree, "msg.data")
	tree.Invalidate(data)
	tree.Invalidate(data)
	got, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClone_Isolation(t *testing.T) {
	tree := model.MustCompile(lengthPrefixed())
	clone := tree.Clone()

	clone.SetValue(find(t, clone, "msg.data"), model.String("zz"))
	clone.SetTypedValue(find(t, clone, "msg.len"), model.Uint(1))

	orig, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 'a', 'b', 'c'}, orig)

	cloned, err := clone.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 'z', 'z'}, cloned)
	assert.False(t, tree.IsOverridden(find(t, tree, "msg.len")))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  *model.Def
		want error
	}{
		{
			name: "mutual fixups",
			def: model.NewBlock("m",
				model.NewNumber("a", 8).Fix(sum8{}, "b"),
				model.NewNumber("b", 8).Fix(sum8{}, "a"),
			),
			want: model.ErrCycle,
		},
		{
			name: "fixup covers itself",
			def: model.NewBlock("m",
				model.NewNumber("crc", 8).Fix(sum8{}, "m"),
				model.NewBlob("data"),
			),
			want: model.ErrCycle,
		},
		{
			name: "text length measures itself",
			def: model.NewBlock("m",
				model.NewString("len").SizeOf("m"),
				model.NewBlob("data"),
			),
			want: model.ErrCycle,
		},
		{
			name: "unknown target",
			def:  model.NewBlock("m", model.NewNumber("len", 8).SizeOf("nope")),
			want: model.ErrUnresolved,
		},
		{
			name: "duplicate sibling",
			def:  model.NewBlock("m", model.NewNumber("a", 8), model.NewNumber("a", 8)),
			want: model.ErrDuplicateName,
		},
		{
			name: "count of non array",
			def:  model.NewBlock("m", model.NewNumber("n", 8).CountOf("m")),
			want: model.ErrInvalidDef,
		},
		{
			name: "zero width number",
			def:  model.NewBlock("m", model.NewNumber("n", 0)),
			want: model.ErrInvalidDef,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.Compile(tc.def)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			var cfgErr *model.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestLookup_Scoped(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewBlock("a", model.NewNumber("x", 8)),
		model.NewBlock("b", model.NewNumber("x", 8), model.NewNumber("y", 8)),
	))
	y := find(t, tree, "m.b.y")

	id, err := tree.Lookup(y, "x")
	require.NoError(t, err)
	assert.Equal(t, "m.b.x", tree.Path(id))

	id, err = tree.Lookup(y, "a.x")
	require.NoError(t, err)
	assert.Equal(t, "m.a.x", tree.Path(id))

	_, err = tree.Lookup(y, "c")
	assert.ErrorIs(t, err, model.ErrUnresolved)
}

func TestDiff_ReportsMutations(t *testing.T) {
	def := model.NewBlock("msg",
		model.NewNumber("kind", 8).Value(1),
		model.NewChoice("body",
			model.NewString("text").Value("hi"),
			model.NewBlob("raw"),
		),
		model.NewArray("items", model.NewNumber("item", 8)).Instances(1),
	)
	pristine := model.MustCompile(def)
	mutated := pristine.Clone()

	assert.Empty(t, model.Diff(pristine, mutated))

	mutated.SetValue(find(t, mutated, "msg.kind"), model.Int(7))
	require.NoError(t, mutated.Select(find(t, mutated, "msg.body"), find(t, mutated, "msg.body.raw")))
	require.NoError(t, mutated.Resize(find(t, mutated, "msg.items"), 2))

	changes := model.Diff(pristine, mutated)
	kinds := map[string]model.ChangeKind{}
	for _, c := range changes {
		kinds[c.Path] = c.Kind
	}
	assert.Equal(t, model.ChangeValue, kinds["msg.kind"])
	assert.Equal(t, model.ChangeSelect, kinds["msg.body"])
	assert.Equal(t, model.ChangeResize, kinds["msg.items"])
	assert.Equal(t, model.ChangeAdded, kinds["msg.items.item_1"])
	assert.Equal(t, "msg.kind value: 1 -> 7", changes[0].String())
}
