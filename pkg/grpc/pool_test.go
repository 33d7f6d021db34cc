package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestPool_ReusesConnection(t *testing.T) {
	pool := NewPool()

	first, err := pool.GetConnection("localhost:50051")
	require.NoError(t, err)
	second, err := pool.GetConnection("localhost:50051")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := pool.GetConnection("localhost:50052")
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	require.NoError(t, pool.Close())

	// 關閉後重新建立
	again, err := pool.GetConnection("localhost:50051")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	require.NoError(t, pool.Close())
}

func TestJSONCodec_Registered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	require.NotNil(t, codec)

	type message struct {
		Amount string `json:"amount"`
	}
	data, err := codec.Marshal(&message{Amount: "1000"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1000"}`, string(data))
}
