package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func getKey(c valkey.Client) valkey.Completed {
	return c.B().Get().Key("k").Build()
}

func TestValkeyDoWithRetryReconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mock.NewClient(ctrl)
	second := mock.NewClient(ctrl)

	first.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
	first.EXPECT().Close()
	second.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.ValkeyString("v")))

	dials := 0
	vc := WrapValkeyClient(first, func(valkey.ClientOption) (valkey.Client, error) {
		dials++
		return second, nil
	})
	vc.retryDelay = time.Millisecond

	v, err := vc.DoWithRetry(context.Background(), getKey, 3).ToString()
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, dials)
}

func TestValkeyDoWithRetryTreatsNilAsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).Return(mock.Result(mock.ValkeyNil()))

	vc := WrapValkeyClient(client, nil)
	res := vc.DoWithRetry(context.Background(), getKey, 3)
	assert.True(t, valkey.IsValkeyNil(res.Error()))
}

func TestValkeyDoWithRetryDoesNotSleepAfterLastAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))).
		Times(2)

	vc := WrapValkeyClient(client, nil)
	vc.retryDelay = 200 * time.Millisecond

	start := time.Now()
	res := vc.DoWithRetry(context.Background(), getKey, 2)
	elapsed := time.Since(start)

	require.Error(t, res.Error())
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 380*time.Millisecond)
}

func TestValkeyDoMultiWithRetryReconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mock.NewClient(ctrl)
	second := mock.NewClient(ctrl)

	first.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).Return([]valkey.ValkeyResult{
		mock.Result(mock.ValkeyString("OK")),
		mock.ErrorResult(errors.New("EOF")),
	})
	first.EXPECT().Close()
	second.EXPECT().DoMulti(gomock.Any(), mock.Match("SET", "a", "1"), mock.Match("SET", "b", "2")).Return([]valkey.ValkeyResult{
		mock.Result(mock.ValkeyString("OK")),
		mock.Result(mock.ValkeyString("OK")),
	})

	vc := WrapValkeyClient(first, func(valkey.ClientOption) (valkey.Client, error) { return second, nil })
	vc.retryDelay = time.Millisecond

	results := vc.DoMultiWithRetry(context.Background(), func(c valkey.Client) []valkey.Completed {
		return []valkey.Completed{
			c.B().Set().Key("a").Value("1").Build(),
			c.B().Set().Key("b").Value("2").Build(),
		}
	}, 3)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Error())
	}
}
