package commandry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Validation_RejectsWrongType(t *testing.T) {
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").
		Param("number", Integer(), "Sample number").
		Returns(String()),
		func(_ context.Context, args Args) (any, error) {
			return "ok", nil
		})
	reg := NewRegistry(WithValidation())
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "get_stuff", map[string]string{"number": `"not a number"`})
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "get_stuff", vErr.Function)

	result, err := reg.Execute(context.Background(), "get_stuff", map[string]string{"number": "41"})
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(result))
}

func TestRegistry_Validation_BareStringArgument(t *testing.T) {
	// Bare text that is not valid JSON validates as a string literal, so
	// the permissive string decode stays reachable with validation on.
	fn := mustFunction(t, NewFunction("echo", "Echoes").
		Param("text", String(), "Some text").
		Returns(String()),
		func(_ context.Context, args Args) (any, error) {
			return args.String("text"), nil
		})
	reg := NewRegistry(WithValidation())
	require.NoError(t, reg.Register(fn))

	result, err := reg.Execute(context.Background(), "echo", map[string]string{"text": "hello there"})
	require.NoError(t, err)
	assert.Equal(t, `"hello there"`, string(result))
}

func TestRegistry_Validation_OptionalNull(t *testing.T) {
	// An explicit null for an optional parameter decodes to absent, with
	// validation on just as without it.
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
	reg := NewRegistry(WithValidation())
	require.NoError(t, reg.Register(fn))

	result, err := reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`, "optional": "null"})
	require.NoError(t, err)
	assert.Equal(t, `"testnull"`, string(result))

	// An empty argument means absent too.
	result, err = reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`, "optional": ""})
	require.NoError(t, err)
	assert.Equal(t, `"testnull"`, string(result))

	// Omitted still substitutes the declared default.
	result, err = reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`})
	require.NoError(t, err)
	assert.Equal(t, `"test123"`, string(result))

	// The widened schema still rejects a mistyped value.
	_, err = reg.Execute(context.Background(), "get_stuff", map[string]string{"simple": `"test"`, "optional": `"x"`})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestRegistry_Validation_NestedRecord(t *testing.T) {
	fn := mustFunction(t, NewFunction("set_mark", "Sets a mark").
		Param("point", pointType(), "The point"),
		nopHandler)
	reg := NewRegistry(WithValidation())
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "set_mark", map[string]string{"point": `{"x":1,"y":2}`})
	require.NoError(t, err)

	_, err = reg.Execute(context.Background(), "set_mark", map[string]string{"point": `{"x":"one","y":2}`})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestRegistry_Validation_MissingArgumentStillNamed(t *testing.T) {
	// The missing-argument error wins over the schema's required check so
	// the caller sees which parameter was absent.
	fn := mustFunction(t, NewFunction("get_stuff", "Gets stuff").
		Param("simple", String(), "Sample string"),
		nopHandler)
	reg := NewRegistry(WithValidation())
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "get_stuff", nil)
	require.ErrorIs(t, err, ErrMissingArgument)
}

func TestRegistry_Validation_RefSchemaCompiles(t *testing.T) {
	// Record parameters emit definitions/$ref blocks; they must compile.
	fn := mustFunction(t, NewFunction("set_plane", "Sets a plane").
		Param("plane", planeType(), "The plane"),
		nopHandler)
	reg := NewRegistry(WithValidation())
	require.NoError(t, reg.Register(fn))

	_, err := reg.Execute(context.Background(), "set_plane", map[string]string{"plane": planeJSON})
	require.NoError(t, err)
}
