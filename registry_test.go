package commandry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFunction(t *testing.T, b *FunctionBuilder, h Handler) *Function {
	t.Helper()
	fn, err := b.Handle(h)
	require.NoError(t, err)
	return fn
}

func TestRegistry_Execute(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").
		Param("simple", String(), "Sample string").
		Returns(String()),
		func(_ context.Context, args Args) (any, error) {
			return args.String("simple") + "123", nil
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	result, err := reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`})
	require.NoError(t, err)
	assert.Equal(t, `"test123"`, string(result))
}

func TestRegistry_Execute_OptionalDefault(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").
		Param("simple", String(), "Sample string").
		OptionalParam("optional", Integer(), 123, "Sample optional number").
		Returns(String()),
		func(_ context.Context, args Args) (any, error) {
			if args["optional"] == nil {
				return args.String("simple") + "null", nil
			}
			return fmt.Sprintf("%s%d", args.String("simple"), args.Int("optional")), nil
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	// Omitted: the declared default is substituted exactly.
	result, err := reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`})
	require.NoError(t, err)
	assert.Equal(t, `"test123"`, string(result))

	// Provided: the decoded value wins.
	result, err = reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`, "optional": "456"})
	require.NoError(t, err)
	assert.Equal(t, `"test456"`, string(result))

	// Explicit null decodes to nil, not the default.
	result, err = reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`, "optional": "null"})
	require.NoError(t, err)
	assert.Equal(t, `"testnull"`, string(result))
}

func TestRegistry_Execute_NotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Execute(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrFunctionNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistry_Execute_MissingArgument(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").
		Param("simple", String(), "Sample string"),
		nopHandler)
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "get_stuff", map[string]string{})
	require.ErrorIs(t, err, ErrMissingArgument)
	assert.Contains(t, err.Error(), `"simple"`)
	assert.Contains(t, err.Error(), `"get_stuff"`)
}

func TestRegistry_Execute_DecodeError(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").
		Param("number", Integer(), "Sample number"),
		nopHandler)
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "get_stuff", map[string]string{"number": "abc"})
	require.Error(t, err)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "number", decodeErr.Parameter)
	assert.Equal(t, "get_stuff", decodeErr.Function)
}

func TestRegistry_Execute_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	fn := mustFunction(t, NewFunction("explode", "Always fails").Returns(String()),
		func(_ context.Context, _ Args) (any, error) {
			return nil, boom
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "explode", nil)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "explode", execErr.Function)
	require.ErrorIs(t, err, boom)
}

func TestRegistry_Execute_PanicRecovered(t *testing.T) {
	fn := mustFunction(t, NewFunction("panic", "Panics").Returns(String()),
		func(_ context.Context, _ Args) (any, error) {
			panic("kaboom")
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "panic", nil)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRegistry_Execute_PanicNotRecovered(t *testing.T) {
	fn := mustFunction(t, NewFunction("panic", "Panics"),
		func(_ context.Context, _ Args) (any, error) {
			panic("kaboom")
		})
	reg := NewRegistry(WithRecoverPanics(false))
	require.NoError(t, reg.Register(fn))

	assert.Panics(t, func() {
		_, _ = reg.Execute(context.Background(), "panic", nil)
	})
}

func TestRegistry_Execute_NoReturn(t *testing.T) {
	var invoked bool
	fn := mustFunction(t, NewFunction("alohomora", "Unlock the door"),
		func(_ context.Context, _ Args) (any, error) {
			invoked = true
			return "ignored", nil
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	result, err := reg.Execute(context.Background(), "alohomora", map[string]string{})
	require.NoError(t, err)
	assert.True(t, invoked)
	assert.Nil(t, result)
}

func TestRegistry_Execute_NilResultWithReturn(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").Returns(Optional(String())),
		func(_ context.Context, _ Args) (any, error) {
			return nil, nil
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	result, err := reg.Execute(context.Background(), "get_stuff", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(result))
}

func TestRegistry_Execute_RecordResult(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_location_coordinates", "Get coordinates").
		Returns(pointType()),
		func(_ context.Context, _ Args) (any, error) {
			return map[string]any{"x": 1.0, "y": 2.0}, nil
		})
	reg := NewRegistry()
	require.NoError(t, reg.Register(fn))

	result, err := reg.Execute(context.Background(), "get_location_coordinates", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(result))
}

func TestRegistry_Execute_Timeout(t *testing.T) {
	fn := mustFunction(t, NewFunction("slow", "Waits for ctx").Returns(String()),
		func(ctx context.Context, _ Args) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		})
	reg := NewRegistry(WithExecuteTimeout(10 * time.Millisecond))
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "slow", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_Schemas_Sorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		fn := mustFunction(t, NewFunction(name, "Does "+name), nopHandler)
		require.NoError(t, reg.Register(fn))
	}
	schemas := reg.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "alpha", schemas[0]["name"])
	assert.Equal(t, "mid", schemas[1]["name"])
	assert.Equal(t, "zeta", schemas[2]["name"])
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	first := mustFunction(t, NewFunction("fn", "First"), nopHandler)
	second := mustFunction(t, NewFunction("fn", "Second"), nopHandler)
	reg := NewRegistry()
	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))
	assert.Equal(t, 1, reg.Len())
	fn, ok := reg.Get("fn")
	require.True(t, ok)
	assert.Equal(t, "Second", fn.Description())
}

func TestRegistry_Hooks(t *testing.T) {
	var before, after []string
	reg := NewRegistry(
		WithOnBeforeExecute(func(_ context.Context, call Call) {
			before = append(before, call.Name)
		}),
		WithOnAfterExecute(func(_ context.Context, call Call, err error, _ time.Duration) {
			after = append(after, fmt.Sprintf("%s err=%v", call.Name, err != nil))
		}),
	)
	ok := mustFunction(t, NewFunction("ok", "Succeeds"), nopHandler)
	fail := mustFunction(t, NewFunction("fail", "Fails").Returns(String()),
		func(_ context.Context, _ Args) (any, error) {
			return nil, errors.New("nope")
		})
	require.NoError(t, reg.Register(ok))
	require.NoError(t, reg.Register(fail))

	_, _ = reg.Execute(context.Background(), "ok", nil)
	_, _ = reg.Execute(context.Background(), "fail", nil)
	assert.Equal(t, []string{"ok", "fail"}, before)
	assert.Equal(t, []string{"ok err=false", "fail err=true"}, after)
}
