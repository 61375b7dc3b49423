// Package commandry exposes a program's operations ("commands") to an LLM
// chat service and drives the function-calling loop around them.
//
// # Overview
//
// The model is shown a set of JSON-Schema function descriptors. When it
// answers with a function call instead of text, commandry decodes the
// streamed call, executes the registered handler, feeds the result back as
// a function message, and asks again until the model produces a final,
// call-free reply. Content deltas are streamed to the caller as they
// arrive.
//
// Declarations built with NewFunction go into a Registry, and a Client
// turn replays the conversation history plus the registry's schemas,
// decodes the event stream chunk by chunk, and either dispatches the
// assembled call or finalizes the reply.
//
// # Key concepts
//
//   - Explicit registration: every function is declared with a name,
//     description, typed parameters (with per-parameter descriptions and
//     optional defaults), and return-type presence. Nothing is inferred
//     from live code.
//   - Single Source of Truth: the same descriptors produce the schema sent
//     to the model and drive decoding of the arguments it sends back.
//   - Permissive decode: models echo bare primitives ("hello" instead of
//     "\"hello\""); string decoding accepts both.
//
// See Type, Function, Registry and Client for the core pieces.
//
// # Example
//
//	fn, err := commandry.NewFunction("get_weather", "Get weather for a city").
//	    Param("city", commandry.String(), "City name").
//	    Returns(commandry.String()).
//	    Handle(func(_ context.Context, args commandry.Args) (any, error) {
//	        return "22.5C in " + args.String("city"), nil
//	    })
//	if err != nil { ... }
//	reg := commandry.NewRegistry()
//	if err := reg.Register(fn); err != nil { ... }
//	client := commandry.NewClient("gpt-4-0613", "You are a weather bot.")
//	reply, err := client.Chat(ctx, "What's the weather in Oslo?", reg)
package commandry
