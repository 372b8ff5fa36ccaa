package transform_test

import (
	"testing"

	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformers_Invertible(t *testing.T) {
	transformers := []model.Transformer{
		transform.Hex{},
		transform.Base64{},
		transform.XOR{Key: []byte{0x5A, 0xA5}},
	}
	input := []byte{0x00, 0x01, 0xFE, 0xFF, 'h', 'i'}

	for _, tr := range transformers {
		t.Run(tr.Name(), func(t *testing.T) {
			enc, err := tr.Encode(input)
			require.NoError(t, err)
			dec, err := tr.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, input, dec)
		})
	}
}

func TestTransformers_AttachmentOrder(t *testing.T) {
	// hex is innermost: "ab" -> "6162" -> base64("6162")
	tree := model.MustCompile(model.NewBlock("m",
		model.NewNumber("len", 8).SizeOf("data"),
		model.NewString("data").Value("ab").Transform(transform.Hex{}, transform.Base64{}),
	))

	out, err := tree.Serialize()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{8}, "NjE2Mg=="...), out)
}

func TestXOR_EmptyKey(t *testing.T) {
	_, err := transform.XOR{}.Encode([]byte{1})
	assert.ErrorIs(t, err, transform.ErrEmptyKey)
}

func TestHex_InvalidInput(t *testing.T) {
	_, err := transform.Hex{}.Decode([]byte("zz"))
	assert.Error(t, err)
}
