package cracker_test

import (
	"bytes"
	"context"
	"testing"
	"testing/iotest"

	"github.com/aretw0/crackle/pkg/cracker"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, tree *model.Tree, path string) model.Value {
	t.Helper()
	id, ok := tree.Find(path)
	require.True(t, ok, "element %s not found", path)
	v, err := tree.TypedValue(id)
	require.NoError(t, err)
	return v
}

func requireCrackError(t *testing.T, err error) *cracker.Error {
	t.Helper()
	var ce *cracker.Error
	require.ErrorAs(t, err, &ce)
	return ce
}

func TestCrack_SizePrefixedString(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("msg",
		model.NewNumber("len", 8).SizeOf("data"),
		model.NewString("data"),
	))

	res, err := cracker.Bytes(context.Background(), tree, []byte{0x03, 'a', 'b', 'c'})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 'a', 'b', 'c'}, res.Consumed)
	assert.Equal(t, model.Uint(3), value(t, tree, "msg.len"))
	assert.Equal(t, model.String("abc"), value(t, tree, "msg.data"))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 'a', 'b', 'c'}, out)
}

func countedItems() *model.Tree {
	return model.MustCompile(model.NewBlock("msg",
		model.NewNumber("count", 32).CountOf("items"),
		model.NewArray("items", model.NewNumber("item", 8)),
	))
}

func TestCrack_CountGovernedArray(t *testing.T) {
	tree := countedItems()

	_, err := cracker.Bytes(context.Background(), tree, []byte{0x00, 0x00, 0x00, 0x02, 0xAA, 0xBB})
	require.NoError(t, err)

	items, _ := tree.Find("msg.items")
	assert.Len(t, tree.Children(items), 2)
	assert.Equal(t, model.Uint(2), value(t, tree, "msg.count"))
	assert.Equal(t, model.Uint(0xAA), value(t, tree, "msg.items.item_0"))
	assert.Equal(t, model.Uint(0xBB), value(t, tree, "msg.items.item_1"))
}

func TestCrack_CountGovernedArrayTruncated(t *testing.T) {
	tree := countedItems()

	_, err := cracker.Bytes(context.Background(), tree, []byte{0x00, 0x00, 0x00, 0x02, 0xAA})
	ce := requireCrackError(t, err)
	assert.Equal(t, "msg.items.item_1", ce.Path)
	assert.Equal(t, 5, ce.Offset)
	assert.ErrorIs(t, err, cracker.ErrInsufficientData)
}

func leaves(withValues bool) *model.Def {
	set := func(d *model.Def, v any) *model.Def {
		if withValues {
			return d.Value(v)
		}
		return d
	}
	return model.NewBlock("m",
		set(model.NewNumber("u8", 8), 0xFE),
		set(model.NewNumber("i16", 16).Signed().Little(), -300),
		set(model.NewNumber("nibble", 4), 9),
		set(model.NewNumber("bits12", 12), 0xABC),
		set(model.NewNumber("u64", 64), uint64(1<<63+5)),
		set(model.NewString("fixed").Fixed(6), "abc"),
		set(model.NewString("cstr").Terminated(), "hello"),
		set(model.NewBlob("rest"), []byte{0xDE, 0xAD, 0xBE, 0xEF}),
	)
}

func TestCrack_RoundTrip(t *testing.T) {
	want, err := model.MustCompile(leaves(true)).Serialize()
	require.NoError(t, err)

	tree := model.MustCompile(leaves(false))
	_, err = cracker.Bytes(context.Background(), tree, want)
	require.NoError(t, err)

	got, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, model.Int(-300), value(t, tree, "m.i16"))
	assert.Equal(t, model.Uint(0xABC), value(t, tree, "m.bits12"))
	assert.Equal(t, model.Uint(1<<63+5), value(t, tree, "m.u64"))
	assert.Equal(t, model.String("hello"), value(t, tree, "m.cstr"))
	assert.Equal(t, model.Bytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}), value(t, tree, "m.rest"))
}

func TestCrack_Boundary(t *testing.T) {
	def := func() *model.Tree {
		return model.MustCompile(model.NewBlock("m", model.NewNumber("n", 32)))
	}

	t.Run("exact", func(t *testing.T) {
		_, err := cracker.Bytes(context.Background(), def(), []byte{1, 2, 3, 4})
		assert.NoError(t, err)
	})

	t.Run("one short", func(t *testing.T) {
		_, err := cracker.Bytes(context.Background(), def(), []byte{1, 2, 3})
		ce := requireCrackError(t, err)
		assert.Equal(t, "m.n", ce.Path)
		assert.Equal(t, 0, ce.Offset)
		assert.ErrorIs(t, err, cracker.ErrInsufficientData)
	})

	t.Run("empty", func(t *testing.T) {
		res, err := cracker.Bytes(context.Background(), def(), nil)
		assert.ErrorIs(t, err, cracker.ErrInsufficientData)
		assert.Empty(t, res.Received)
	})
}

func TestCrack_ChoiceRollsBack(t *testing.T) {
	def := func() *model.Tree {
		return model.MustCompile(model.NewChoice("frame",
			model.NewBlock("ping",
				model.NewNumber("type", 8).Value(1).Token(),
				model.NewNumber("seq", 8),
			),
			model.NewBlock("data",
				model.NewNumber("type", 8).Value(2).Token(),
				model.NewNumber("payload", 16),
			),
		))
	}

	tree := def()
	_, err := cracker.Bytes(context.Background(), tree, []byte{2, 0x01, 0x02})
	require.NoError(t, err)
	data, _ := tree.Find("frame.data")
	assert.Equal(t, data, tree.Selected(tree.Root()))
	assert.Equal(t, model.Uint(0x0102), value(t, tree, "frame.data.payload"))

	_, err = cracker.Bytes(context.Background(), def(), []byte{3, 0x00})
	ce := requireCrackError(t, err)
	assert.Equal(t, "frame", ce.Path)
	assert.ErrorIs(t, err, cracker.ErrNoCandidate)
	assert.ErrorIs(t, err, cracker.ErrTokenMismatch)
}

func TestCrack_TrailingDataInBoundedRegion(t *testing.T) {
	def := func() *model.Tree {
		return model.MustCompile(model.NewBlock("m",
			model.NewNumber("len", 8).SizeOf("body"),
			model.NewBlock("body", model.NewNumber("a", 8)),
		))
	}
	input := []byte{2, 1, 2}

	_, err := cracker.Bytes(context.Background(), def(), input)
	ce := requireCrackError(t, err)
	assert.Equal(t, "m.body", ce.Path)
	assert.Equal(t, 2, ce.Offset)
	assert.ErrorIs(t, err, cracker.ErrTrailingData)

	tree := def()
	res, err := cracker.Bytes(context.Background(), tree, input, cracker.WithBestEffort())
	require.NoError(t, err)
	assert.Equal(t, input, res.Consumed)
	assert.Equal(t, model.Uint(1), value(t, tree, "m.body.a"))
}

func TestCrack_OffsetSeeksForward(t *testing.T) {
	def := func() *model.Tree {
		return model.MustCompile(model.NewBlock("m",
			model.NewNumber("off", 8).OffsetOf("data"),
			model.NewNumber("data", 8),
		))
	}

	tree := def()
	_, err := cracker.Bytes(context.Background(), tree, []byte{3, 0xEE, 0xEE, 9})
	require.NoError(t, err)
	assert.Equal(t, model.Uint(9), value(t, tree, "m.data"))

	_, err = cracker.Bytes(context.Background(), def(), []byte{0, 9})
	assert.ErrorIs(t, err, cracker.ErrBackwardSeek)
}

func TestCrack_OffsetRelativeToAnchor(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("pad", 8),
		model.NewNumber("start", 8),
		model.NewNumber("off", 8).OffsetOf("data", model.RelativeTo("start")),
		model.NewNumber("data", 8),
	))

	// start sits at byte 1, so data lives at byte 1+3 and 0xEE is skipped.
	res, err := cracker.Bytes(context.Background(), tree, []byte{0xAA, 0x01, 0x03, 0xEE, 0x09})
	require.NoError(t, err)
	assert.Equal(t, model.Uint(9), value(t, tree, "m.data"))
	assert.Len(t, res.Consumed, 5)
}

func TestCrack_GovernorAfterTarget(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("data", 16),
		model.NewNumber("len", 8).SizeOf("data"),
	))

	res, err := cracker.Bytes(context.Background(), tree, []byte{0x12, 0x34, 0x09})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34, 0x09}, res.Consumed)
	assert.Equal(t, model.Uint(0x1234), value(t, tree, "m.data"))

	id, ok := tree.Find("m.len")
	require.True(t, ok)
	assert.Equal(t, model.Uint(9), tree.Value(id))
}

func TestCrack_OversizedLengthField(t *testing.T) {
	input := []byte{0x10, 0, 0, 0, 0, 0, 0, 0x01, 'a', 'b'}

	sized := model.MustCompile(model.NewBlock("m",
		model.NewNumber("len", 64).SizeOf("data"),
		model.NewBlob("data"),
	))
	_, err := cracker.Bytes(context.Background(), sized, input)
	ce := requireCrackError(t, err)
	assert.Equal(t, "m.data", ce.Path)
	assert.Equal(t, 8, ce.Offset)
	assert.ErrorIs(t, err, cracker.ErrInvalidLength)

	seeking := model.MustCompile(model.NewBlock("m",
		model.NewNumber("off", 64).OffsetOf("data"),
		model.NewNumber("data", 8),
	))
	_, err = cracker.Bytes(context.Background(), seeking, input)
	assert.ErrorIs(t, err, cracker.ErrInvalidLength)
}

func TestCrack_GreedyArray(t *testing.T) {
	def := func() *model.Tree {
		return model.MustCompile(model.NewBlock("m",
			model.NewArray("items", model.NewNumber("item", 8)).Occurs(1, -1),
		))
	}

	tree := def()
	_, err := cracker.Bytes(context.Background(), tree, []byte{1, 2, 3})
	require.NoError(t, err)
	items, _ := tree.Find("m.items")
	assert.Len(t, tree.Children(items), 3)

	_, err = cracker.Bytes(context.Background(), def(), nil)
	ce := requireCrackError(t, err)
	assert.Equal(t, "m.items", ce.Path)
	assert.ErrorIs(t, err, cracker.ErrOccurrences)
}

func TestCrack_TransformedContent(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("len", 8).SizeOf("data"),
		model.NewString("data").Transform(transform.Hex{}),
	))

	_, err := cracker.Bytes(context.Background(), tree, []byte{4, '6', '1', '6', '2'})
	require.NoError(t, err)
	assert.Equal(t, model.String("ab"), value(t, tree, "m.data"))
}

func TestCrack_Incremental(t *testing.T) {
	tree := model.MustCompile(model.NewBlock("m", model.NewNumber("n", 16)))
	src := iotest.OneByteReader(bytes.NewReader([]byte{0x12, 0x34, 0x56, 0x78, 0x9A}))

	res, err := cracker.Crack(context.Background(), tree, src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, res.Consumed)
	assert.Len(t, res.Received, 2)
}

func TestCrack_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cracker.Bytes(ctx, model.MustCompile(model.NewBlock("m", model.NewNumber("n", 8))), []byte{1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, cracker.IsFailure(err))
}
