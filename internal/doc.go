// Package internal contains the implementation packages of blockpipe.
//
// # Package Organization
//
//   - config: project document and tool settings
//   - resolver: ordered style, script and image inputs of a project
//   - task: task definitions, statuses and the registry
//   - scheduler: staged, concurrent, fail-fast execution of plans
//   - tasks: the build tasks (sprites, styles, scripts, copies, templates)
//   - tool: external command invocation
//   - pipeline: task registration, default plan and watch bindings
//   - watcher: file system monitoring and change routing
//   - server: development server with live reload
//   - errors, logging, validation, version: shared infrastructure
//
// # Flow
//
// A build loads the project document once, resolves the input lists and
// runs the default plan through the scheduler. In serve mode the watcher
// debounces file events, the router maps changed paths to a task, the
// scheduler reruns that task together with any dependency not yet
// completed in the session, and the server tells connected browsers to
// reload the page or only its stylesheets.
package internal
