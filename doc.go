// Package livefield is the composition root for the livefield workspace tool.
//
// GlobalSearch Live Fields are database fields whose value is computed by a
// JavaScript snippet running inside the GlobalSearch host. While a script
// runs, the host exposes a global object named $$inject. livefield keeps
// those scripts in a local directory, mapped to their server field IDs, and
// pushes edits back to the server, either on demand or by watching the files.
//
// Layout:
//
//   - pkg/core: domain types (Field, LiveField, Mapping) and sentinel errors.
//   - pkg/globalsearch: rate limited, retrying REST client for the admin API.
//   - pkg/workspace: config, script files, state cache and the file monitor.
//   - pkg/inject: the $$inject contract, its typings and a development stand-in.
//   - pkg/git: optional snapshots of the workspace.
//
// Usage:
//
//	ws, err := livefield.Open(ctx, "config.json", livefield.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//
//	// Import every live field into the script directory.
//	mapping, err := ws.Init(ctx)
//
//	// Push edited scripts back.
//	results, err := ws.Sync(ctx, false)
package livefield
