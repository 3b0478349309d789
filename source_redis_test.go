package rushtpl

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSource(t *testing.T) {
	mr := miniredis.RunT(t)
	src, err := NewRedisSource(RedisConfig{Address: mr.Addr()}, ".html")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	ctx := context.Background()

	assert.Equal(t, "rushtpl:partial:nav.html", src.Resolve(KindPartial, "nav"))
	require.NoError(t, src.Put(ctx, KindPartial, "nav", "<nav>{{ x }}</nav>"))

	got, err := mr.Get("rushtpl:partial:nav.html")
	require.NoError(t, err)
	assert.Equal(t, "<nav>{{ x }}</nav>", got)

	data, err := src.Read(ctx, src.Resolve(KindPartial, "nav"))
	require.NoError(t, err)
	assert.Equal(t, "<nav>{{ x }}</nav>", string(data))

	_, err = src.Read(ctx, src.Resolve(KindPartial, "none"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisSourceBacksEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	src, err := NewRedisSource(RedisConfig{Address: mr.Addr(), Prefix: "site:"}, ".html")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	require.NoError(t, mr.Set("site:template:home.html", "<body>{{> nav }}</body>"))
	require.NoError(t, mr.Set("site:partial:nav.html", "<nav>{{ x }}</nav>"))

	e, err := New(testConfig(t), WithSource(src))
	require.NoError(t, err)
	out, err := e.RenderTemplateString(context.Background(), "home", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "<body><nav>1</nav></body>", out)

	_, err = e.Preload(context.Background())
	assert.ErrorIs(t, err, errNoFileSource)
}

func TestRedisSourceConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisSource(RedisConfig{Address: addr}, ".html")
	assert.Error(t, err)
}
